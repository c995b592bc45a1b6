package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateActionType(t *testing.T) {
	assert.NoError(t, ValidateActionType("group"))
	assert.NoError(t, ValidateActionType("chat"))
	assert.Error(t, ValidateActionType("channel"))
	assert.Error(t, ValidateActionType(""))
}

func TestValidateChatID(t *testing.T) {
	assert.NoError(t, ValidateChatID("12345@g.us"))
	assert.Error(t, ValidateChatID("   "))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://tracker.example.com/project/1"))
	assert.Error(t, ValidateURL(""))
	assert.Error(t, ValidateURL("not a url"))
	assert.Error(t, ValidateURL("/relative/path"))
}

func TestValidateProxyTarget(t *testing.T) {
	assert.NoError(t, ValidateProxyTarget("http://cdn.example.com/pic.jpg"))
	assert.Error(t, ValidateProxyTarget("file:///etc/passwd"))
	assert.Error(t, ValidateProxyTarget("ftp://cdn.example.com/pic.jpg"))
}
