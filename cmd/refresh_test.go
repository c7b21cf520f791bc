package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobalert-crawler/internal/pipeline"
)

type fakeRefresher struct {
	refreshed []string
	all       bool
}

func (f *fakeRefresher) RefreshCategory(_ context.Context, category string) pipeline.Result {
	f.refreshed = append(f.refreshed, category)
	return pipeline.Result{Category: category, Success: category != "broken", Count: 2}
}

func (f *fakeRefresher) RefreshAll(context.Context) []pipeline.Result {
	f.all = true
	return []pipeline.Result{{Category: "latest", Success: true, Count: 5, NewCount: 1}}
}

func TestRunRefreshNamedCategories(t *testing.T) {
	t.Parallel()

	svc := &fakeRefresher{}
	var out bytes.Buffer
	require.NoError(t, runRefresh(context.Background(), svc, []string{"bank", "railway"}, &out))
	require.Equal(t, []string{"bank", "railway"}, svc.refreshed)
	require.False(t, svc.all)

	var results []pipeline.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 2)
	require.Equal(t, "bank", results[0].Category)
}

func TestRunRefreshAll(t *testing.T) {
	t.Parallel()

	svc := &fakeRefresher{}
	var out bytes.Buffer
	require.NoError(t, runRefresh(context.Background(), svc, nil, &out))
	require.True(t, svc.all)
	require.Contains(t, out.String(), `"newCount": 1`)
}

func TestRunRefreshReportsFailures(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := runRefresh(context.Background(), &fakeRefresher{}, []string{"bank", "broken"}, &out)
	require.EqualError(t, err, "1 of 2 categories failed")
	require.Contains(t, out.String(), `"broken"`)
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["serve"])
	require.True(t, names["refresh"])
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}
