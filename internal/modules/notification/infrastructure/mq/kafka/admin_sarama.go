package kafka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type TopicAdminConfig struct {
	Brokers  []string
	ClientID string
}

// TopicSpec 变更主题参数；Retention 为 0 时保留 7 天
type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Retention         time.Duration
}

// EnsureTopic 主题不存在时创建
func EnsureTopic(cfg TopicAdminConfig, spec TopicSpec) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka brokers is empty")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.ClientID = strings.TrimSpace(cfg.ClientID)

	admin, err := sarama.NewClusterAdmin(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	defer admin.Close()
	return ensureTopic(admin, spec)
}

func ensureTopic(admin sarama.ClusterAdmin, spec TopicSpec) error {
	topic := strings.TrimSpace(spec.Name)
	if topic == "" {
		return errors.New("kafka topic is empty")
	}

	topics, err := admin.ListTopics()
	if err != nil {
		return err
	}
	if _, ok := topics[topic]; ok {
		return nil
	}

	if err := admin.CreateTopic(topic, topicDetail(spec), false); err != nil {
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

func topicDetail(spec TopicSpec) *sarama.TopicDetail {
	partitions := spec.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	replication := spec.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}
	retention := spec.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replication,
		ConfigEntries: map[string]*string{
			"retention.ms": strPtr(strconv.FormatInt(retention.Milliseconds(), 10)),
		},
	}
}

func strPtr(v string) *string {
	s := v
	return &s
}
