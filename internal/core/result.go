package core

// ResultKind is the outcome of a frontend registration.
type ResultKind int

const (
	ResultRepoAdded ResultKind = iota
	ResultOrgAdded
	ResultInvalidRepo
	ResultInvalidOrg
	ResultInvalidGroup
	ResultOrgFailed
)

// Boundary strings returned to the frontend.
const (
	StatusRepoAdded    = "Repo Added"
	StatusOrgAdded     = "Org repos added"
	StatusInvalidRepo  = "Invalid repo"
	StatusInvalidOrg   = "Invalid org"
	StatusInvalidGroup = "Invalid group name"
	StatusOrgFailed    = "Failed to add org repos"
)

func (k ResultKind) String() string {
	switch k {
	case ResultRepoAdded:
		return StatusRepoAdded
	case ResultOrgAdded:
		return StatusOrgAdded
	case ResultInvalidRepo:
		return StatusInvalidRepo
	case ResultInvalidOrg:
		return StatusInvalidOrg
	case ResultInvalidGroup:
		return StatusInvalidGroup
	case ResultOrgFailed:
		return StatusOrgFailed
	}

	return ""
}

// OK reports whether the registration went through.
func (k ResultKind) OK() bool {
	return k == ResultRepoAdded || k == ResultOrgAdded
}

// Result is what a frontend registration reports back.
type Result struct {
	Kind   ResultKind `json:"-"`
	Status string     `json:"status"`

	// Count is the number of repositories registered by an org submission.
	Count int `json:"count,omitempty"`

	// Detail carries the underlying error text for failures.
	Detail string `json:"detail,omitempty"`
}

func newResult(kind ResultKind, count int, err error) Result {
	r := Result{Kind: kind, Status: kind.String(), Count: count}
	if err != nil {
		r.Detail = err.Error()
	}

	return r
}
