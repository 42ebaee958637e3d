package backend

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

// Wire documents of the build service. Only the attributes the views read are mapped.

type resultList struct {
	XMLName xml.Name    `xml:"resultlist"`
	Results []resultXML `xml:"result"`
}

type resultXML struct {
	Repository string        `xml:"repository,attr"`
	Arch       string        `xml:"arch,attr"`
	State      string        `xml:"state,attr"`
	Dirty      string        `xml:"dirty,attr"`
	Statuses   []statusXML   `xml:"status"`
	Summary    []statusCount `xml:"summary>statuscount"`
}

type statusXML struct {
	Package string `xml:"package,attr"`
	Code    string `xml:"code,attr"`
	Details string `xml:"details"`
	SrcMD5  string `xml:"srcmd5,attr"`
	Time    string `xml:"time,attr"`
}

type statusCount struct {
	Code  string `xml:"code,attr"`
	Count string `xml:"count,attr"`
}

type projectMeta struct {
	XMLName      xml.Name        `xml:"project"`
	Name         string          `xml:"name,attr"`
	Repositories []repositoryXML `xml:"repository"`
}

type repositoryXML struct {
	Name  string   `xml:"name,attr"`
	Archs []string `xml:"arch"`
}

type directoryXML struct {
	XMLName xml.Name   `xml:"directory"`
	Entries []entryXML `xml:"entry"`
}

type entryXML struct {
	Name string `xml:"name,attr"`
	MD5  string `xml:"md5,attr"`
}

type attributeXML struct {
	XMLName   xml.Name              `xml:"attribute"`
	Namespace string                `xml:"namespace,attr"`
	Name      string                `xml:"name,attr"`
	Projects  []attributeProjectXML `xml:"project"`
}

type attributeProjectXML struct {
	Name     string                `xml:"name,attr"`
	Packages []attributePackageXML `xml:"package"`
}

type attributePackageXML struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"values>value"`
}

type collectionXML struct {
	XMLName  xml.Name     `xml:"collection"`
	Requests []requestXML `xml:"request"`
}

type requestXML struct {
	ID      string      `xml:"id,attr"`
	State   stateXML    `xml:"state"`
	Actions []actionXML `xml:"action"`
}

type stateXML struct {
	Name string `xml:"name,attr"`
}

type actionXML struct {
	Type   string     `xml:"type,attr"`
	Target *targetXML `xml:"target"`
}

type targetXML struct {
	Project string `xml:"project,attr"`
	Package string `xml:"package,attr"`
}

type packagesXML struct {
	XMLName  xml.Name           `xml:"packages"`
	Project  string             `xml:"project,attr"`
	Packages []packageStatusXML `xml:"package"`
}

type packageStatusXML struct {
	Name     string        `xml:"name,attr"`
	Version  string        `xml:"version,attr"`
	SrcMD5   string        `xml:"srcmd5,attr"`
	Failures []failureXML  `xml:"failure"`
	Devel    *develpackXML `xml:"develpack"`
}

type failureXML struct {
	Repo   string `xml:"repo,attr"`
	Time   string `xml:"time,attr"`
	SrcMD5 string `xml:"srcmd5,attr"`
}

type develpackXML struct {
	Project string          `xml:"proj,attr"`
	Package string          `xml:"pack,attr"`
	Status  develPackageXML `xml:"package"`
}

type develPackageXML struct {
	SrcMD5 string  `xml:"srcmd5,attr"`
	Error  *string `xml:"error"`
}

// statusDocument is the error body the build service sends with non-2xx answers
type statusDocument struct {
	XMLName xml.Name `xml:"status"`
	Code    string   `xml:"code,attr"`
	Summary string   `xml:"summary"`
}

func (r resultList) toTypes() []types.BuildResult {
	metrics := observability.GetMetrics()
	out := make([]types.BuildResult, 0, len(r.Results))
	for _, res := range r.Results {
		br := types.BuildResult{
			Repository:   res.Repository,
			Architecture: res.Arch,
			State:        types.BuildState(res.State),
			Dirty:        res.Dirty != "" && res.Dirty != "false",
		}
		for _, st := range res.Statuses {
			pbs := types.PackageBuildStatus{
				Package: st.Package,
				Code:    st.Code,
				Details: strings.TrimSpace(st.Details),
				SrcMD5:  st.SrcMD5,
			}
			if st.Time != "" {
				ts, err := strconv.ParseInt(st.Time, 10, 64)
				if err != nil {
					metrics.MalformedRecords.WithLabelValues("status_time").Inc()
					ts = 0
				}
				pbs.Timestamp = ts
			}
			br.Statuses = append(br.Statuses, pbs)
		}
		for _, sc := range res.Summary {
			n, err := strconv.Atoi(sc.Count)
			if err != nil {
				metrics.MalformedRecords.WithLabelValues("statuscount").Inc()
				continue
			}
			br.Summary = append(br.Summary, types.StatusCount{Code: sc.Code, Count: n})
		}
		out = append(out, br)
	}
	return out
}

func (m projectMeta) toTypes() []types.Repository {
	out := make([]types.Repository, 0, len(m.Repositories))
	for _, r := range m.Repositories {
		out = append(out, types.Repository{Name: r.Name, Archs: r.Archs})
	}
	return out
}

func (d directoryXML) toTypes() []types.DirEntry {
	out := make([]types.DirEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		out = append(out, types.DirEntry{Name: e.Name, MD5: e.MD5})
	}
	return out
}

// toTypes flattens the attribute tree; the owning package of every value node is the grouping key
func (a attributeXML) toTypes(attr types.AttributeRef) []types.Attribute {
	var out []types.Attribute
	for _, prj := range a.Projects {
		for _, pkg := range prj.Packages {
			for _, v := range pkg.Values {
				out = append(out, types.Attribute{
					Namespace: attr.Namespace,
					Name:      attr.Name,
					Package:   pkg.Name,
					Value:     v,
				})
			}
		}
	}
	return out
}

func (c collectionXML) toTypes() []types.Request {
	out := make([]types.Request, 0, len(c.Requests))
	for _, r := range c.Requests {
		req := types.Request{ID: r.ID, State: r.State.Name}
		if len(r.Actions) > 0 {
			action := r.Actions[0]
			req.ActionType = action.Type
			if action.Target != nil {
				req.TargetProject = action.Target.Project
				req.TargetPackage = action.Target.Package
			}
		}
		out = append(out, req)
	}
	return out
}

func (p packagesXML) toTypes(project string) *types.ProjectStatus {
	status := &types.ProjectStatus{
		Project:  project,
		Packages: make([]types.PackageStatus, 0, len(p.Packages)),
	}
	for _, pkg := range p.Packages {
		ps := types.PackageStatus{
			Name:    pkg.Name,
			Version: pkg.Version,
			SrcMD5:  pkg.SrcMD5,
		}
		for _, f := range pkg.Failures {
			ps.Failures = append(ps.Failures, types.Failure{Repo: f.Repo, Time: f.Time, SrcMD5: f.SrcMD5})
		}
		if pkg.Devel != nil {
			devel := &types.DevelPackage{
				Project: pkg.Devel.Project,
				Package: pkg.Devel.Package,
				SrcMD5:  pkg.Devel.Status.SrcMD5,
			}
			if pkg.Devel.Status.Error != nil {
				devel.Error = strings.TrimSpace(*pkg.Devel.Status.Error)
			}
			ps.Devel = devel
		}
		status.Packages = append(status.Packages, ps)
	}
	return status
}

func decodeXML(endpoint string, data []byte, v interface{}) error {
	if err := xml.Unmarshal(data, v); err != nil {
		observability.GetMetrics().MalformedRecords.WithLabelValues(endpoint).Inc()
		return errors.NewPermanent(errors.NewMalformed(endpoint+" document", err))
	}
	return nil
}

// errorSummary extracts the human readable message of a build service error body
func errorSummary(statusCode int, body []byte) error {
	var doc statusDocument
	if err := xml.Unmarshal(body, &doc); err == nil && doc.Summary != "" {
		return fmt.Errorf("backend returned %d: %s", statusCode, strings.TrimSpace(doc.Summary))
	}
	return fmt.Errorf("backend returned %d: %s", statusCode, string(body[:min(len(body), 200)]))
}
