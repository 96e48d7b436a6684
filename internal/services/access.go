package services

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/yolymatics/tutoring-service/internal/models"
)

type AccessDecision int

const (
	AccessLoading AccessDecision = iota
	AccessGranted
	AccessRedirect
)

func (d AccessDecision) String() string {
	switch d {
	case AccessLoading:
		return "loading"
	case AccessGranted:
		return "granted"
	default:
		return "redirect"
	}
}

// Decide gates a route. required nil means any signed-in user with a profile.
func Decide(state *models.AuthState, required *models.Role) AccessDecision {
	if state != nil && state.Loading {
		return AccessLoading
	}
	role, ok := state.Role()
	if !ok {
		return AccessRedirect
	}
	if required == nil || role == *required {
		return AccessGranted
	}
	return AccessRedirect
}

// Resources and actions checked by Authorizer.
const (
	ResourceProfiles    = "profiles"
	ResourceStudents    = "students"
	ResourceLessons     = "lessons"
	ResourceHomework    = "homework"
	ResourceFeedback    = "feedback"
	ResourcePerformance = "performance"
	ResourceFiles       = "files"
	ResourceReports     = "reports"

	ActionRead     = "read"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
	ActionSubmit   = "submit"
	ActionGrade    = "grade"
	ActionUpload   = "upload"
	ActionManage   = "manage"
)

//go:embed rbac_model.conf
var rbacModel string

//go:embed rbac_policy.csv
var rbacPolicy string

// Authorizer answers which role may do what to which kind of record.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	rules, err := parsePolicy(rbacPolicy)
	if err != nil {
		return nil, err
	}
	if _, err := enforcer.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}

	return &Authorizer{enforcer: enforcer}, nil
}

// Can reports whether role may perform act on obj. Enforcer errors deny.
func (a *Authorizer) Can(role models.Role, obj, act string) bool {
	if !role.IsValid() {
		return false
	}
	ok, err := a.enforcer.Enforce(role.String(), obj, act)
	return err == nil && ok
}

// Check is Can as an error for service code.
func (a *Authorizer) Check(userID string, role models.Role, obj, act string) error {
	if a.Can(role, obj, act) {
		return nil
	}
	return NewPermissionError(userID, "", obj, act, fmt.Sprintf("role %s is not allowed", role))
}

func parsePolicy(content string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rules [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse casbin policy: %w", err)
		}
		if len(record) != 4 || record[0] != "p" {
			return nil, fmt.Errorf("parse casbin policy: unexpected line %q", strings.Join(record, ", "))
		}
		rules = append(rules, record[1:])
	}
	return rules, nil
}
