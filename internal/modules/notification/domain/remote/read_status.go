package remote

import (
	"context"
	"fmt"
)

// FailureKind 已读接口失败分类
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// Result 已读接口调用结果。调用方只用于记录日志与审计，本地状态不依赖它。
type Result struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func Succeeded(status int) Result {
	return Result{StatusCode: status}
}

func Transient(status int, err error) Result {
	return Result{Kind: FailureTransient, StatusCode: status, Err: err}
}

func Permanent(status int, err error) Result {
	return Result{Kind: FailurePermanent, StatusCode: status, Err: err}
}

func (r Result) OK() bool {
	return r.Kind == FailureNone
}

// Outcome 审计与日志使用的结果标签：ok / transient / permanent
func (r Result) Outcome() string {
	if r.OK() {
		return "ok"
	}
	return string(r.Kind)
}

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("ok (%d)", r.StatusCode)
	}
	return fmt.Sprintf("%s (%d): %v", r.Kind, r.StatusCode, r.Err)
}

// ReadStatusClient 上游已读状态接口
type ReadStatusClient interface {
	MarkOneRead(ctx context.Context, serverID string) Result
	MarkAllRead(ctx context.Context) Result
}
