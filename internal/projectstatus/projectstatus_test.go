package projectstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/daimoniac/pkgstatus/internal/backend/backendtest"
	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

const project = "openSUSE:Factory"

func newAssembler(opts ...Option) (*Assembler, *backendtest.Fake) {
	fake := backendtest.New()
	logger := observability.NewLogger("error")
	return NewAssembler(fake, cache.New(cache.NewMemoryStore(), logger), logger, opts...), fake
}

func failing(name, md5 string, failures ...types.Failure) types.PackageStatus {
	return types.PackageStatus{
		Name:     name,
		Version:  "1.0",
		SrcMD5:   md5,
		Failures: failures,
	}
}

func failure(repo, time, md5 string) types.Failure {
	return types.Failure{Repo: repo, Time: time, SrcMD5: md5}
}

func withDevel(p types.PackageStatus, develProject, develMD5 string) types.PackageStatus {
	p.Devel = &types.DevelPackage{Project: develProject, Package: p.Name, SrcMD5: develMD5}
	return p
}

func seed(fake *backendtest.Fake, packages ...types.PackageStatus) {
	fake.Status[project] = &types.ProjectStatus{Project: project, Packages: packages}
}

func names(view *View) []string {
	out := make([]string, 0, len(view.Packages))
	for _, p := range view.Packages {
		out = append(out, p.Name)
	}
	return out
}

func TestAssembleNewestCurrentFailure(t *testing.T) {
	a, fake := newAssembler()
	seed(fake, failing("gcc", "m",
		failure("standard/x86_64", "10", "m"),
		failure("standard/aarch64", "30", "m"),
		failure("other/x86_64", "20", "stale"),
	))

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(view.Packages) != 1 {
		t.Fatalf("packages = %v", names(view))
	}
	rec := view.Packages[0]
	if rec.FirstFail != 30 || rec.FailedRepository != "standard" || rec.FailedArchitecture != "aarch64" {
		t.Errorf("failure = %s/%s@%d, want standard/aarch64@30",
			rec.FailedRepository, rec.FailedArchitecture, rec.FirstFail)
	}
}

func TestAssembleIgnoresStaleAndIgnoredRepositories(t *testing.T) {
	a, fake := newAssembler()
	seed(fake,
		failing("stale", "m", failure("standard/x86_64", "50", "old")),
		failing("staging", "m", failure("staging_A/x86_64", "50", "m")),
		failing("broken-time", "m", failure("standard/x86_64", "yesterday", "m")),
	)

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Packages) != 0 {
		t.Errorf("expected no failing packages, got %v", names(view))
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	a, fake := newAssembler()
	seed(fake,
		withDevel(failing("zlib", "a1", failure("standard/x86_64", "5", "a1")), "devel:libs", "b1"),
		failing("gcc", "c1", failure("standard/x86_64", "7", "c1")),
	)
	fake.Dirs[project+"/zlib"] = []types.DirEntry{{Name: "zlib.changes", MD5: "x"}}
	fake.Dirs["devel:libs/zlib"] = []types.DirEntry{{Name: "zlib.changes", MD5: "y"}}
	fake.Attrs[backendtest.AttrKey(project, types.AttrFailComment)] = []types.Attribute{
		{Package: "gcc", Value: "known issue"},
	}

	opts := DefaultOptions(project)
	first, err := a.Assemble(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Assemble(cache.WithDiscard(context.Background()), opts)
	if err != nil {
		t.Fatal(err)
	}

	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	if string(b1) != string(b2) {
		t.Errorf("views differ:\n%s\n%s", b1, b2)
	}
	if names := names(first); !reflect.DeepEqual(names, []string{"gcc", "zlib"}) {
		t.Errorf("packages = %v, want sorted by name", names)
	}
	if first.Packages[0].FailedComment != "known issue" {
		t.Errorf("comment = %q", first.Packages[0].FailedComment)
	}
	if got := first.Packages[1].Problems; !reflect.DeepEqual(got, []types.ProblemKind{types.ProblemDifferentChanges}) {
		t.Errorf("problems = %v", got)
	}
}

func TestAssembleAmbiguousChangesFile(t *testing.T) {
	a, fake := newAssembler()
	seed(fake, withDevel(failing("kernel", "a1", failure("standard/x86_64", "5", "a1")), "Kernel:HEAD", "b1"))
	fake.Dirs[project+"/kernel"] = []types.DirEntry{
		{Name: "kernel-default.changes", MD5: "x"},
		{Name: "kernel-source.changes", MD5: "y"},
	}
	fake.Dirs["Kernel:HEAD/kernel"] = []types.DirEntry{{Name: "kernel.changes", MD5: "z"}}

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(view.Packages) != 1 {
		t.Fatalf("packages = %v", names(view))
	}
	problems := view.Packages[0].Problems
	if len(problems) != 1 || problems[0] != "no .changes file in "+project+"/kernel" {
		t.Errorf("problems = %v", problems)
	}
}

func TestAssembleEqualSourcesSkipDivergence(t *testing.T) {
	a, fake := newAssembler()
	seed(fake, withDevel(failing("gcc", "same", failure("standard/x86_64", "5", "same")), "devel:gcc", "same"))

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Packages[0].Problems) != 0 {
		t.Errorf("problems = %v, want none", view.Packages[0].Problems)
	}
	if fake.Calls("Directory") != 0 {
		t.Errorf("Directory called %d times, want 0", fake.Calls("Directory"))
	}
}

func TestAssembleDevelErrorFollowsDivergence(t *testing.T) {
	a, fake := newAssembler()
	p := withDevel(failing("vim", "a1", failure("standard/x86_64", "5", "a1")), "editors", "b1")
	p.Devel.Error = "broken link"
	seed(fake, p)
	fake.Dirs[project+"/vim"] = []types.DirEntry{{Name: "vim.changes", MD5: "same"}}
	fake.Dirs["editors/vim"] = []types.DirEntry{{Name: "vim.changes", MD5: "same"}}

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if err != nil {
		t.Fatal(err)
	}
	want := []types.ProblemKind{types.ProblemDifferentSources, "error-broken link"}
	if got := view.Packages[0].Problems; !reflect.DeepEqual(got, want) {
		t.Errorf("problems = %v, want %v", got, want)
	}
}

func TestAssembleDevelFilter(t *testing.T) {
	seedAll := func(fake *backendtest.Fake) {
		seed(fake,
			withDevel(failing("a", "m", failure("standard/x86_64", "1", "m")), "devel:B", "m"),
			withDevel(failing("b", "m", failure("standard/x86_64", "1", "m")), "devel:a", "m"),
			withDevel(failing("c", "m", failure("standard/x86_64", "1", "m")), "devel:B", "m"),
			failing("d", "m", failure("standard/x86_64", "1", "m")),
		)
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{AllPackages, []string{"a", "b", "c", "d"}},
		{NoProject, []string{"d"}},
		{"devel:B", []string{"a", "c"}},
		{"devel:none", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			a, fake := newAssembler()
			seedAll(fake)
			opts := DefaultOptions(project)
			opts.DevelFilter = tt.filter

			view, err := a.Assemble(context.Background(), opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := names(view); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("packages = %v, want %v", got, tt.want)
			}
			wantDevel := []string{AllPackages, NoProject, "devel:a", "devel:B"}
			if !reflect.DeepEqual(view.DevelProjects, wantDevel) {
				t.Errorf("devel projects = %v, want %v", view.DevelProjects, wantDevel)
			}
			if view.CurrentDevelProject != tt.filter {
				t.Errorf("current devel project = %q", view.CurrentDevelProject)
			}
		})
	}
}

func TestAssembleToggles(t *testing.T) {
	setup := func() (*Assembler, *backendtest.Fake) {
		a, fake := newAssembler()
		seed(fake,
			failing("failing", "m", failure("standard/x86_64", "3", "m")),
			failing("pending", "m", failure("standard/x86_64", "3", "m")),
			failing("outdated", "m"),
			failing("quiet", "m"),
		)
		fake.Requests = []types.Request{
			{ID: "42", State: "new", ActionType: types.ActionSubmit, TargetProject: project, TargetPackage: "pending"},
		}
		fake.Attrs[backendtest.AttrKey(project, types.AttrUpstreamVersion)] = []types.Attribute{
			{Package: "outdated", Value: "2.0"},
			{Package: "quiet", Value: "0.9"},
		}
		return a, fake
	}

	tests := []struct {
		name   string
		modify func(*Options)
		want   []string
	}{
		{"defaults", func(o *Options) {}, []string{"failing", "pending"}},
		{"ignore pending", func(o *Options) { o.IgnorePending = true }, []string{"failing"}},
		{"everything interesting", func(o *Options) { o.LimitToFailures = false }, []string{"failing", "outdated", "pending"}},
		{"without versions", func(o *Options) {
			o.LimitToFailures = false
			o.IncludeVersions = false
		}, []string{"failing", "pending"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := setup()
			opts := DefaultOptions(project)
			tt.modify(&opts)

			view, err := a.Assemble(context.Background(), opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := names(view); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("packages = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssembleRequestsAndUpstream(t *testing.T) {
	a, fake := newAssembler()
	seed(fake, withDevel(failing("gcc", "m", failure("standard/x86_64", "3", "m")), "devel:gcc", "m"))
	fake.Requests = []types.Request{
		{ID: "7", State: "new", ActionType: types.ActionSubmit, TargetProject: project, TargetPackage: "gcc"},
		{ID: "9", State: "new", ActionType: types.ActionSubmit, TargetProject: "devel:gcc", TargetPackage: "gcc"},
		{ID: "x", State: "new", ActionType: types.ActionSubmit, TargetProject: project, TargetPackage: "gcc"},
	}
	fake.Attrs[backendtest.AttrKey(project, types.AttrUpstreamVersion)] = []types.Attribute{{Package: "gcc", Value: "1.1"}}
	fake.Attrs[backendtest.AttrKey(project, types.AttrUpstreamURL)] = []types.Attribute{{Package: "gcc", Value: "https://gcc.gnu.org/gcc-1.1.tar.xz"}}

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if err != nil {
		t.Fatal(err)
	}
	rec := view.Packages[0]
	if !reflect.DeepEqual(rec.RequestsFrom, []int{7}) || !reflect.DeepEqual(rec.RequestsTo, []int{9}) {
		t.Errorf("requests from %v to %v", rec.RequestsFrom, rec.RequestsTo)
	}
	if rec.UpstreamVersion != "1.1" || rec.UpstreamURL == "" {
		t.Errorf("upstream = %q %q", rec.UpstreamVersion, rec.UpstreamURL)
	}
}

func TestAssembleViewFailure(t *testing.T) {
	unavailable := fmt.Errorf("%w: status 503", errors.ErrBackendUnavailable)

	for _, method := range []string{"ProjectStatus", "Attributes", "NewRequests"} {
		t.Run(method, func(t *testing.T) {
			a, fake := newAssembler()
			seed(fake, failing("gcc", "m", failure("standard/x86_64", "3", "m")))
			fake.SetError(method, "", unavailable)

			if _, err := a.Assemble(context.Background(), DefaultOptions(project)); !errors.Is(err, errors.ErrBackendUnavailable) {
				t.Errorf("Assemble() error = %v, want backend unavailable", err)
			}
		})
	}
}

func TestAssembleRateLimitedSnapshotFails(t *testing.T) {
	a, fake := newAssembler()
	seed(fake, failing("gcc", "m", failure("standard/x86_64", "3", "m")))
	fake.SetError("ProjectStatus", "", errors.NewTransient(fmt.Errorf("%w: status 429", errors.ErrRateLimit)))

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if !errors.Is(err, errors.ErrRateLimit) {
		t.Fatalf("Assemble() = %+v, %v, want rate limit error", view, err)
	}
}

func TestAssembleDegradesOnOtherErrors(t *testing.T) {
	a, fake := newAssembler()
	seed(fake, withDevel(failing("gcc", "a", failure("standard/x86_64", "3", "a")), "devel:gcc", "b"))
	fake.SetError("Attributes", "", fmt.Errorf("%w: bad attribute", errors.ErrForbidden))
	fake.SetError("NewRequests", "", fmt.Errorf("%w: denied", errors.ErrUnauthorized))
	fake.SetError("Directory", "", fmt.Errorf("%w: denied", errors.ErrForbidden))

	view, err := a.Assemble(context.Background(), DefaultOptions(project))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(view.Packages) != 1 || len(view.Packages[0].Problems) != 0 {
		t.Errorf("view = %+v", view.Packages)
	}
}

func TestAssembleUnknownProject(t *testing.T) {
	a, _ := newAssembler()

	view, err := a.Assemble(context.Background(), DefaultOptions("home:nobody"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(view.Packages) != 0 {
		t.Errorf("packages = %v", names(view))
	}
	if !reflect.DeepEqual(view.DevelProjects, []string{AllPackages, NoProject}) {
		t.Errorf("devel projects = %v", view.DevelProjects)
	}
}

func TestAssembleCancelled(t *testing.T) {
	a, fake := newAssembler()
	seed(fake, failing("gcc", "m", failure("standard/x86_64", "3", "m")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Assemble(ctx, DefaultOptions(project)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestAssembleExpression(t *testing.T) {
	a, fake := newAssembler()
	seed(fake,
		failing("gcc", "m", failure("standard/x86_64", "3", "m")),
		failing("zlib", "m", failure("standard/aarch64", "3", "m")),
	)

	opts := DefaultOptions(project)
	opts.Expression = `failedArch == "aarch64"`
	view, err := a.Assemble(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(view); !reflect.DeepEqual(got, []string{"zlib"}) {
		t.Errorf("packages = %v", got)
	}

	opts.Expression = `name +`
	if _, err := a.Assemble(context.Background(), opts); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Assemble() error = %v, want invalid input", err)
	}
}

func TestAssembleSemverComparer(t *testing.T) {
	a, fake := newAssembler(WithVersionComparer(SemverComparer{}))
	p := failing("gcc", "m")
	p.Version = "9.0"
	seed(fake, p)
	fake.Attrs[backendtest.AttrKey(project, types.AttrUpstreamVersion)] = []types.Attribute{{Package: "gcc", Value: "10.0"}}

	opts := DefaultOptions(project)
	opts.LimitToFailures = false
	view, err := a.Assemble(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Packages) != 1 || view.Packages[0].UpstreamVersion != "10.0" {
		t.Errorf("view = %+v", view.Packages)
	}

	lexical, fake := newAssembler()
	seed(fake, p)
	fake.Attrs[backendtest.AttrKey(project, types.AttrUpstreamVersion)] = []types.Attribute{{Package: "gcc", Value: "10.0"}}
	view, err = lexical.Assemble(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Packages) != 0 {
		t.Errorf("lexical comparison must not report 10.0 over 9.0, got %+v", view.Packages)
	}
}

func TestDevelProjectList(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"empty", nil, []string{AllPackages, NoProject}},
		{"case insensitive order", []string{"devel:b", "Devel:A", "devel:c"}, []string{AllPackages, NoProject, "Devel:A", "devel:b", "devel:c"}},
		{"duplicates around case variant", []string{"Foo", "foo", "Foo"}, []string{AllPackages, NoProject, "Foo", "foo"}},
		{"scattered duplicates", []string{"x", "Y", "x", "y", "Y", "x"}, []string{AllPackages, NoProject, "x", "Y", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := develProjectList(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("develProjectList(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
