// Package models holds the wire types exchanged with the Kube-JIT backend.
package models

import "time"

// Provider identifies an OAuth provider the backend is configured for.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
	ProviderAzure  Provider = "azure"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGitHub, ProviderGoogle, ProviderAzure:
		return true
	}
	return false
}

// UserIdentity is the normalized user profile returned by the backend.
type UserIdentity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Provider  string `json:"provider"`
}

// Valid reports whether the identity carries enough to act on.
func (u *UserIdentity) Valid() bool {
	return u != nil && u.ID != "" && u.Name != ""
}

// LoginResponse is returned by the OAuth callback endpoint.
type LoginResponse struct {
	UserData  *UserIdentity `json:"userData"`
	ExpiresIn int64         `json:"expiresIn"`
}

// ProviderConfig is returned by GET /client_id.
type ProviderConfig struct {
	ClientID    string   `json:"client_id"`
	RedirectURI string   `json:"redirect_uri"`
	AuthURL     string   `json:"auth_url"`
	Provider    Provider `json:"provider"`
}

// Status is the lifecycle status of an access request.
type Status string

const (
	StatusRequested Status = "Requested"
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusSucceeded Status = "Succeeded"
)

// Decision reports whether s is a status an approver may set.
func (s Status) Decision() bool {
	return s == StatusApproved || s == StatusRejected
}

// Cluster names a target cluster.
type Cluster struct {
	Name string `json:"name"`
}

// ClusterRole names a role that may be requested.
type ClusterRole struct {
	Name string `json:"name" yaml:"name"`
}

// Options is returned by GET /roles-and-clusters.
type Options struct {
	Clusters []string      `json:"clusters"`
	Roles    []ClusterRole `json:"roles"`
}

// HasCluster reports whether name is a known cluster.
func (o Options) HasCluster(name string) bool {
	for _, c := range o.Clusters {
		if c == name {
			return true
		}
	}
	return false
}

// HasRole reports whether name is a known role.
func (o Options) HasRole(name string) bool {
	for _, r := range o.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// SubmitRequest is the body of POST /submit-request.
type SubmitRequest struct {
	Justification string       `json:"justification"`
	Users         []string     `json:"users"`
	Cluster       *Cluster     `json:"cluster"`
	Namespaces    []string     `json:"namespaces"`
	Role          *ClusterRole `json:"role"`
	ApprovingTeam *Team        `json:"approvingTeam,omitempty"`
	RequestorID   string       `json:"requestorId"`
	RequestorName string       `json:"requestorName"`
	Status        Status       `json:"status"`
	StartDate     time.Time    `json:"startDate"`
	EndDate       time.Time    `json:"endDate"`
}

// NamespaceApproval is the per-namespace approval detail of a request.
type NamespaceApproval struct {
	Namespace    string `json:"namespace"`
	GroupID      string `json:"groupID"`
	GroupName    string `json:"groupName,omitempty"`
	Approved     bool   `json:"approved"`
	ApproverID   string `json:"approverID"`
	ApproverName string `json:"approverName"`
}

// AccessRequest is a historical request as returned by GET /history.
type AccessRequest struct {
	ID                 uint                `json:"ID"`
	CreatedAt          time.Time           `json:"CreatedAt"`
	UpdatedAt          time.Time           `json:"UpdatedAt"`
	UserID             string              `json:"userID"`
	Username           string              `json:"username"`
	ClusterName        string              `json:"clusterName"`
	RoleName           string              `json:"roleName"`
	Status             Status              `json:"status"`
	Notes              string              `json:"notes"`
	Users              []string            `json:"users"`
	Namespaces         []string            `json:"namespaces"`
	Justification      string              `json:"justification"`
	StartDate          time.Time           `json:"startDate"`
	EndDate            time.Time           `json:"endDate"`
	ApproverIDs        []string            `json:"approverIDs"`
	ApproverNames      []string            `json:"approverNames"`
	NamespaceApprovals []NamespaceApproval `json:"namespaceApprovals"`
}

// PendingRequest is a row of GET /approvals. It is sent back verbatim in
// the approve/reject batch.
type PendingRequest struct {
	ID            uint      `json:"ID"`
	ClusterName   string    `json:"clusterName"`
	RoleName      string    `json:"roleName"`
	Status        Status    `json:"status"`
	UserID        string    `json:"userID"`
	Username      string    `json:"username"`
	Users         []string  `json:"users"`
	Justification string    `json:"justification"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	Namespaces    []string  `json:"namespaces"`
	GroupIDs      []string  `json:"groupIDs"`
	ApprovedList  []bool    `json:"approvedList"`
	CreatedAt     time.Time `json:"CreatedAt"`
}

// DecisionRequest is the body of POST /approve-reject.
type DecisionRequest struct {
	Requests     []PendingRequest `json:"requests"`
	ApproverID   string           `json:"approverID"`
	ApproverName string           `json:"approverName"`
	Status       Status           `json:"status"`
}

// MessageResponse is the generic {message, error} envelope.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CleanupResult is returned by POST /admin/clean-expired.
type CleanupResult struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// BuildInfo is returned by GET /build-sha.
type BuildInfo struct {
	Sha string `json:"sha"`
}

// Short returns the first seven characters of the sha.
func (b BuildInfo) Short() string {
	if len(b.Sha) > 7 {
		return b.Sha[:7]
	}
	return b.Sha
}
