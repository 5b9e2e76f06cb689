package calendar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fcamachol/chatflow/pkg/models"
)

func TestResolver_ResolveConferenceURL_UsesPlatformHost(t *testing.T) {
	r := NewResolver()
	instance := &models.Instance{InstanceID: "inst-1"}

	url, err := r.ResolveConferenceURL(context.Background(), instance, "zoom")

	assert.NoError(t, err)
	assert.Contains(t, url, "zoom.us/j/")
}

func TestResolver_ResolveConferenceURL_DefaultsToJitsi(t *testing.T) {
	r := NewResolver()
	instance := &models.Instance{InstanceID: "inst-1"}

	url, err := r.ResolveConferenceURL(context.Background(), instance, "")

	assert.NoError(t, err)
	assert.Contains(t, url, "meet.jit.si/")
}

func TestResolver_ResolveConferenceURL_GeneratesDistinctRoomsPerCall(t *testing.T) {
	r := NewResolver()
	instance := &models.Instance{InstanceID: "inst-1"}

	first, err := r.ResolveConferenceURL(context.Background(), instance, "meet")
	assert.NoError(t, err)
	second, err := r.ResolveConferenceURL(context.Background(), instance, "meet")
	assert.NoError(t, err)

	assert.NotEqual(t, first, second)
}
