// Package authz answers permission questions for fulfilment operations.
// Grants are relation tuples (resource, relation, subject) persisted next to
// the data they protect, plus a small number of role claims carried on the
// token itself.
package authz

import (
	"context"
	"database/sql"
	"fmt"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

// Role claims recognized on access tokens.
const (
	RoleERPAdmin = "erp_admin"
)

// Relations written against workspace resources.
const (
	RelationMember = "member"
	RelationOwner  = "owner"
)

type Authorizer interface {
	// RequireWorkspaceMember fails with an UnauthorizedError unless the
	// principal holds a member or owner relation on the workspace. ERP
	// admins pass unconditionally.
	RequireWorkspaceMember(ctx context.Context, principal *domain.Principal, workspaceID string) error
	// RequireERPAdmin fails unless the principal carries the erp_admin role.
	RequireERPAdmin(principal *domain.Principal) error
	// GrantWorkspaceMember writes a membership tuple for the principal.
	GrantWorkspaceMember(ctx context.Context, tx *sql.Tx, workspaceID, principalID string) error
	// RegisterFulfilmentOwnership records which workspace and sales order a
	// new fulfilment belongs to.
	RegisterFulfilmentOwnership(ctx context.Context, tx *sql.Tx, fulfilmentID, workspaceID, salesOrderID string) error
}

type authorizer struct {
	relations repository.RelationRepository
}

func NewAuthorizer(relations repository.RelationRepository) Authorizer {
	return &authorizer{relations: relations}
}

func (a *authorizer) RequireWorkspaceMember(ctx context.Context, principal *domain.Principal, workspaceID string) error {
	if principal == nil {
		return domain.NewUnauthorizedError("operation requires an authenticated principal")
	}
	if principal.HasRole(RoleERPAdmin) {
		return nil
	}

	resource := workspaceResource(workspaceID)
	for _, relation := range []string{RelationOwner, RelationMember} {
		ok, err := a.relations.HasRelation(ctx, resource, relation, principal.ID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return domain.NewUnauthorizedError(
		fmt.Sprintf("principal %s is not a member of workspace %s", principal.ID, workspaceID))
}

func (a *authorizer) RequireERPAdmin(principal *domain.Principal) error {
	if principal == nil {
		return domain.NewUnauthorizedError("operation requires an authenticated principal")
	}
	if !principal.HasRole(RoleERPAdmin) {
		return domain.NewUnauthorizedError(
			fmt.Sprintf("principal %s lacks the %s role", principal.ID, RoleERPAdmin))
	}
	return nil
}

func (a *authorizer) GrantWorkspaceMember(ctx context.Context, tx *sql.Tx, workspaceID, principalID string) error {
	return a.relations.WriteRelation(ctx, tx, workspaceResource(workspaceID), RelationMember, principalID)
}

func (a *authorizer) RegisterFulfilmentOwnership(ctx context.Context, tx *sql.Tx, fulfilmentID, workspaceID, salesOrderID string) error {
	resource := fulfilmentResource(fulfilmentID)
	if err := a.relations.WriteRelation(ctx, tx, resource, RelationOwner, workspaceResource(workspaceID)); err != nil {
		return err
	}
	return a.relations.WriteRelation(ctx, tx, resource, RelationOwner, salesOrderResource(salesOrderID))
}

func workspaceResource(workspaceID string) string {
	return "workspace:" + workspaceID
}

func fulfilmentResource(fulfilmentID string) string {
	return "fulfilment:" + fulfilmentID
}

func salesOrderResource(salesOrderID string) string {
	return "salesorder:" + salesOrderID
}
