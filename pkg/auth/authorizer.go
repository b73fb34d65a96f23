package auth

import (
	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
)

// WorkspaceAuthorizer is the default diagram-metadata authorizer: inbound
// metadata is accepted only for the workspace the session was opened for.
type WorkspaceAuthorizer struct {
	workspaceID string
}

var _ ports.Authorizer = (*WorkspaceAuthorizer)(nil)

// NewWorkspaceAuthorizer creates an authorizer pinned to a workspace. An
// empty workspace id disables the check (every metadata update is
// ignored, none applied).
func NewWorkspaceAuthorizer(workspaceID string) *WorkspaceAuthorizer {
	return &WorkspaceAuthorizer{workspaceID: workspaceID}
}

// NewWorkspaceAuthorizerFromClaims pins the authorizer to the workspace
// claim of a verified token.
func NewWorkspaceAuthorizerFromClaims(claims *Claims) *WorkspaceAuthorizer {
	return &WorkspaceAuthorizer{workspaceID: claims.WorkspaceID}
}

// Authorize gates inbound diagram metadata.
func (a *WorkspaceAuthorizer) Authorize(md *entities.DiagramMetadata) ports.Decision {
	if md == nil || md.WorkspaceID == "" {
		return ports.DecisionIgnore
	}
	if a.workspaceID == "" {
		return ports.DecisionIgnore
	}
	if md.WorkspaceID == a.workspaceID {
		return ports.DecisionAllow
	}
	return ports.DecisionDeny
}
