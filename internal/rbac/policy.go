// Package rbac decides which dashboard pages an identity may open.
package rbac

import "github.com/jwalitptl/dispensing-api/internal/model"

// Capability names a page or page action guarded by the role gate.
type Capability string

const (
	CapDashboard            Capability = "dashboard"
	CapDocumentCapture      Capability = "document_capture"
	CapDocumentConsultation Capability = "document_consultation"
	CapSavedDocuments       Capability = "saved_documents"
	CapSavedDocumentsManage Capability = "saved_documents_manage"
	CapMedicationRecord     Capability = "medication_record"
	CapAdminUsers           Capability = "admin_users"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{
	CapDashboard,
	CapDocumentCapture,
	CapDocumentConsultation,
	CapSavedDocuments,
	CapSavedDocumentsManage,
	CapMedicationRecord,
	CapAdminUsers,
}

// denied holds, per role, the capabilities that role may not use.
// Roles absent from the table are denied everything.
var denied = map[model.Role]map[Capability]bool{
	model.RoleAdmin: {},
	model.RoleUser: {
		CapAdminUsers: true,
	},
	model.RoleExternal: {
		CapDocumentCapture:      true,
		CapMedicationRecord:     true,
		CapAdminUsers:           true,
		CapSavedDocumentsManage: true,
	},
}

// CanAccess reports whether identity may use capability. A nil identity may use nothing.
func CanAccess(identity *model.Identity, capability Capability) bool {
	if identity == nil {
		return false
	}
	return RoleCan(identity.Role, capability)
}

// RoleCan is the role-only form of CanAccess.
func RoleCan(role model.Role, capability Capability) bool {
	deny, ok := denied[role]
	if !ok {
		return false
	}
	if !known(capability) {
		return false
	}
	return !deny[capability]
}

// Allowed returns the capabilities role may use, in declaration order.
func Allowed(role model.Role) []Capability {
	out := make([]Capability, 0, len(Capabilities))
	for _, c := range Capabilities {
		if RoleCan(role, c) {
			out = append(out, c)
		}
	}
	return out
}

func known(c Capability) bool {
	for _, k := range Capabilities {
		if k == c {
			return true
		}
	}
	return false
}
