package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
)

func TestPlanJobs(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "cfsv2_flxf00_201902.nc")
	require.NoError(t, os.WriteFile(existing, []byte("CDF"), 0o644))

	resolve := func(_ context.Context, y, m int) (string, error) {
		if m == 3 {
			return "", errors.New("dataset not found")
		}
		return fmt.Sprintf("https://thredds.example/ncss/%d%02d", y, m), nil
	}
	jobs, failed := planJobs(context.Background(), dir, []int{2019}, []int{1, 2, 3}, resolve, common.DiscardLogger())

	assert.Equal(t, 1, failed)
	require.Len(t, jobs, 2)
	assert.Equal(t, "https://thredds.example/ncss/201901", jobs[0].URL)
	assert.Equal(t, filepath.Join(dir, "cfsv2_flxf00_201901.nc"), jobs[0].Dest)
	assert.Empty(t, jobs[1].URL)
	assert.Equal(t, existing, jobs[1].Dest)
}

func TestPlanJobs_CanceledStopsAllYears(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	resolve := func(ctx context.Context, _, _ int) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	}
	jobs, failed := planJobs(ctx, t.TempDir(), []int{2018, 2019, 2020}, []int{1, 2}, resolve, common.DiscardLogger())

	assert.Equal(t, 1, calls)
	assert.Empty(t, jobs)
	assert.Zero(t, failed)
}
