package backend

import (
	"encoding/xml"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/daimoniac/pkgstatus/internal/observability"
)

func TestResultListTimestamps(t *testing.T) {
	doc := `<resultlist>
  <result repository="standard" arch="x86_64" state="finished">
    <status package="gcc" code="failed" time="1700000000"/>
    <status package="zlib" code="failed" time="99999999999999999999"/>
    <status package="bash" code="failed" time="soon"/>
    <status package="glibc" code="succeeded"/>
  </result>
</resultlist>`

	var list resultList
	if err := xml.Unmarshal([]byte(doc), &list); err != nil {
		t.Fatal(err)
	}

	malformed := observability.GetMetrics().MalformedRecords.WithLabelValues("status_time")
	before := testutil.ToFloat64(malformed)

	results := list.toTypes()
	if len(results) != 1 || len(results[0].Statuses) != 4 {
		t.Fatalf("unexpected results %+v", results)
	}

	want := map[string]int64{"gcc": 1700000000, "zlib": 0, "bash": 0, "glibc": 0}
	for _, st := range results[0].Statuses {
		if st.Timestamp != want[st.Package] {
			t.Errorf("%s timestamp = %d, want %d", st.Package, st.Timestamp, want[st.Package])
		}
	}

	if got := testutil.ToFloat64(malformed) - before; got != 2 {
		t.Errorf("malformed status times counted %v, want 2", got)
	}
}
