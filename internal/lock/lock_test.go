package lock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fuelsplit/internal/errs"
)

func TestMutex_Exclusive(t *testing.T) {
	m := NewMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestMutex_TimesOut(t *testing.T) {
	m := NewMutex()
	unlock, err := m.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestMutexWait_BoundsBackgroundContext(t *testing.T) {
	m := NewMutexWait(10 * time.Millisecond)
	unlock, err := m.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	_, err = m.Lock(context.Background())
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestRedis_LockAndRelease(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set; skipping redis lock tests")
	}
	ctx := context.Background()
	client, err := Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	key := "fuelsplit:test:lock:" + t.Name()
	l := NewRedis(client, RedisOptions{Key: key, TTL: 5 * time.Second, Wait: 100 * time.Millisecond}, nil)

	unlock, err := l.Lock(ctx)
	require.NoError(t, err)

	_, err = l.Lock(ctx)
	assert.ErrorIs(t, err, errs.ErrConflict)

	unlock()
	unlock2, err := l.Lock(ctx)
	require.NoError(t, err)
	unlock2()
}
