package jobs_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/billscan/billscan/internal/jobs"
)

func TestKeyedLock(t *testing.T) {
	l := jobs.NewKeyedLock()
	a, b := uuid.New(), uuid.New()

	assert.True(t, l.Acquire(a))
	assert.False(t, l.Acquire(a), "second acquire on the same job is rejected")
	assert.True(t, l.Acquire(b), "distinct jobs lock independently")
	assert.True(t, l.Held(a))

	l.Release(a)
	assert.False(t, l.Held(a))
	assert.True(t, l.Acquire(a))

	l.Release(uuid.New()) // releasing an unheld key is harmless
}
