package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withAuthConfig(t *testing.T, operatorSecret, apiKey, jwtSecret string) {
	t.Helper()
	prevOperator, prevAPIKey, prevJWT := OperatorSecretKey, LocalAPIKey, JWTSecretKey
	OperatorSecretKey, LocalAPIKey, JWTSecretKey = operatorSecret, apiKey, jwtSecret
	t.Cleanup(func() {
		OperatorSecretKey, LocalAPIKey, JWTSecretKey = prevOperator, prevAPIKey, prevJWT
	})
}

func protectedApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/protected", handler, func(c *fiber.Ctx) error {
		operator, _ := c.Locals("operator").(string)
		return c.JSON(fiber.Map{"operator": operator})
	})
	return app
}

func TestOperatorTokenRoundTrip(t *testing.T) {
	withAuthConfig(t, "secret-1", "", "signing-key")

	token, err := GenerateOperatorToken("dana")
	require.NoError(t, err)

	claims, err := ValidateOperatorToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dana", claims.Operator)
	assert.Equal(t, "dana", claims.Subject)
}

func TestGenerateOperatorTokenWithoutSecret(t *testing.T) {
	withAuthConfig(t, "", "", "")

	_, err := GenerateOperatorToken("dana")
	assert.ErrorContains(t, err, "not configured")
}

func TestValidateOperatorTokenRejectsTampering(t *testing.T) {
	withAuthConfig(t, "", "", "signing-key")

	token, err := GenerateOperatorToken("dana")
	require.NoError(t, err)

	JWTSecretKey = "different-key"
	_, err = ValidateOperatorToken(token)
	assert.Error(t, err)
}

func TestAdminAuth(t *testing.T) {
	withAuthConfig(t, "admin-secret", "", "")
	app := protectedApp(AdminAuth())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Admin-Secret", "admin-secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOperatorAuthOpenWhenNotConfigured(t *testing.T) {
	withAuthConfig(t, "", "", "")
	app := protectedApp(OperatorAuth())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOperatorAuthAcceptsAPIKey(t *testing.T) {
	withAuthConfig(t, "admin-secret", "static-key", "signing-key")
	app := protectedApp(OperatorAuth())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "static-key")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOperatorAuthAcceptsBearerToken(t *testing.T) {
	withAuthConfig(t, "admin-secret", "", "signing-key")
	app := protectedApp(OperatorAuth())

	token, err := GenerateOperatorToken("dana")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
