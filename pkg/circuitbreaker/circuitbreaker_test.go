package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Settings{Name: "test", Timeout: time.Minute, Failures: 2})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestDefaultSettings(t *testing.T) {
	assert.Equal(t, 15*time.Second, DefaultSettings("patient-lookup").Timeout)
	assert.Equal(t, 5*time.Second, DefaultSettings("redis-session").Timeout)
	assert.Equal(t, 30*time.Second, DefaultSettings("rabbitmq").Timeout)
}
