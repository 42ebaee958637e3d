package types

// ActionSubmit is the action type of a submit request.
const ActionSubmit = "submit"

// Request is a pending change request as delivered by the request store.
// ID is kept as received; parsing happens when the request index is built.
type Request struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	ActionType    string `json:"action_type,omitempty"`
	TargetProject string `json:"target_project,omitempty"`
	TargetPackage string `json:"target_package,omitempty"`
}

// Attribute is one attribute value attached to a package.
type Attribute struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Package   string `json:"package"`
	Value     string `json:"value"`
}

// AttributeRef names an attribute type.
type AttributeRef struct {
	Namespace string
	Name      string
}

// String returns the "namespace:name" form used in URLs and cache keys.
func (a AttributeRef) String() string {
	return a.Namespace + ":" + a.Name
}

var (
	AttrFailComment     = AttributeRef{Namespace: "OBS", Name: "ProjectStatusPackageFailComment"}
	AttrUpstreamVersion = AttributeRef{Namespace: "openSUSE", Name: "UpstreamVersion"}
	AttrUpstreamURL     = AttributeRef{Namespace: "openSUSE", Name: "UpstreamTarballURL"}
)
