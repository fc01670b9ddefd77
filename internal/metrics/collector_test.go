// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Record(t *testing.T) {
	c := NewCollector()
	c.Record(OpClassify, 10*time.Millisecond, nil)
	c.Record(OpClassify, 30*time.Millisecond, errors.New("boom"))
	c.Record(OpScrape, 5*time.Millisecond, nil)

	snap := c.Snapshot()
	require.Contains(t, snap.Operations, OpClassify)
	cls := snap.Operations[OpClassify]
	assert.Equal(t, int64(2), cls.Count)
	assert.Equal(t, int64(1), cls.Errors)
	assert.Equal(t, int64(40), cls.TotalTimeMs)
	assert.Equal(t, 20.0, cls.AvgTimeMs)
	assert.Equal(t, int64(10), cls.MinTimeMs)
	assert.Equal(t, int64(30), cls.MaxTimeMs)

	assert.Equal(t, []string{OpScrape, OpClassify}, c.Operations())
}

func TestCollector_Time(t *testing.T) {
	c := NewCollector()
	done := c.Time(OpProcess)
	done(nil)
	assert.Equal(t, int64(1), c.Snapshot().Operations[OpProcess].Count)
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	c.Record(OpReport, time.Second, nil)
	c.Time(OpReport)(nil)
	assert.Empty(t, c.Snapshot().Operations)
	assert.Nil(t, c.Operations())
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(OpSummarize, time.Millisecond, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().Operations[OpSummarize].Count)
}
