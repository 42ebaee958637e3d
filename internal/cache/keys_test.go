package cache

import (
	"context"
	"strings"
	"testing"
)

func TestProjectPrefixesCoverProjectKeys(t *testing.T) {
	keys := []string{
		ProjectStatusKey("foo"),
		AttributesKey("OBS:UpstreamVersion", "foo"),
		RepositoriesKey("foo"),
		MonitorKey("foo", []string{"failed"}, nil, nil, false),
		PackageResultKey("foo", "gcc"),
		SummaryKey("foo"),
		DirectoryKey("foo", "gcc"),
	}

	for _, key := range keys {
		covered := false
		for _, prefix := range ProjectPrefixes("foo") {
			if strings.HasPrefix(key, prefix) {
				covered = true
			}
		}
		if !covered {
			t.Errorf("key %q is not covered by the prefixes of foo", key)
		}
	}
}

func TestProjectPrefixesDoNotReachOtherProjects(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	ctx := context.Background()
	var calls int32

	others := []string{"foobar", "foo:bar"}
	for _, project := range append([]string{"foo"}, others...) {
		for _, key := range []string{
			ProjectStatusKey(project),
			AttributesKey("OBS:UpstreamVersion", project),
			RepositoriesKey(project),
			MonitorKey(project, nil, nil, nil, true),
			PackageResultKey(project, "gcc"),
			SummaryKey(project),
			DirectoryKey(project, "gcc"),
		} {
			Fetch(ctx, c, key, TTLForever, counter(1, &calls))
		}
	}
	Fetch(ctx, c, RequestsKey(), TTLRequests, counter(1, &calls))

	removed := 0
	for _, prefix := range ProjectPrefixes("foo") {
		n, err := c.Invalidate(ctx, prefix)
		if err != nil {
			t.Fatal(err)
		}
		removed += n
	}

	if removed != 7 {
		t.Errorf("removed %d entries, want 7", removed)
	}
	if left, _ := c.Len(ctx); left != 7*len(others)+1 {
		t.Errorf("Len() = %d, want %d", left, 7*len(others)+1)
	}
}
