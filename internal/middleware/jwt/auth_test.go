package jwt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RxDash/pkg/back"
	"RxDash/pkg/util/myjwt"
	"RxDash/pkg/xerr"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPrincipal string

func (p fixedPrincipal) Principal() string { return string(p) }

func router(key string) *gin.Engine {
	return routerFor(key, fixedPrincipal("U1001"))
}

func routerFor(key string, session PrincipalSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", Auth(key, session), func(c *gin.Context) {
		back.Success(c, gin.H{"uuid": c.GetString("uuid"), "username": c.GetString("username")})
	})
	return r
}

func call(t *testing.T, r *gin.Engine, header string) back.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp back.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuth(t *testing.T) {
	r := router("k1")
	tok, err := myjwt.GenerateToken("k1", "api", "U1001", "pharmacist", time.Hour)
	require.NoError(t, err)

	ok := call(t, r, "Bearer "+tok)
	assert.Equal(t, xerr.OK, ok.Code)
	assert.Equal(t, map[string]interface{}{"uuid": "U1001", "username": "pharmacist"}, ok.Data)

	assert.Equal(t, xerr.Unauthorized, call(t, r, "").Code)
	assert.Equal(t, xerr.Unauthorized, call(t, r, tok).Code)
	assert.Equal(t, xerr.Unauthorized, call(t, r, "Bearer not-a-jwt").Code)

	foreign, err := myjwt.GenerateToken("k2", "api", "U1001", "pharmacist", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, xerr.Unauthorized, call(t, r, "Bearer "+foreign).Code)
}

func TestAuth_PrincipalMustMatchSession(t *testing.T) {
	other, err := myjwt.GenerateToken("k1", "api", "U2002", "driver-admin", time.Hour)
	require.NoError(t, err)
	own, err := myjwt.GenerateToken("k1", "api", "U1001", "pharmacist", time.Hour)
	require.NoError(t, err)

	r := router("k1")
	assert.Equal(t, xerr.Forbidden, call(t, r, "Bearer "+other).Code)
	assert.Equal(t, xerr.OK, call(t, r, "Bearer "+own).Code)

	loggedOut := routerFor("k1", fixedPrincipal(""))
	assert.Equal(t, xerr.Forbidden, call(t, loggedOut, "Bearer "+own).Code)
}

func TestAuth_EmptyKeyRejectsUnsignedTokens(t *testing.T) {
	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, myjwt.CustomClaims{Uuid: "U1001"}).
		SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	signed, err := myjwt.GenerateToken("k1", "api", "U1001", "pharmacist", time.Hour)
	require.NoError(t, err)

	r := router("")
	assert.Equal(t, xerr.Unauthorized, call(t, r, "Bearer "+unsigned).Code)
	assert.Equal(t, xerr.Unauthorized, call(t, r, "Bearer "+signed).Code)
	assert.Equal(t, xerr.Unauthorized, call(t, router("k1"), "Bearer "+unsigned).Code)
}
