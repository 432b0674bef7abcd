package models

// Permission constants
const (
	PermissionMerchantRead  = "merchant:read"
	PermissionMerchantWrite = "merchant:write"
	PermissionTokenRotate   = "merchant:token:rotate"
	PermissionTokenReveal   = "merchant:token:reveal"
	PermissionPaymentCreate = "payment:generate"
	PermissionReportsRead   = "reports:read"
)

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionMerchantRead,
			PermissionMerchantWrite,
			PermissionTokenRotate,
			PermissionTokenReveal,
			PermissionPaymentCreate,
			PermissionReportsRead,
		}
	case RoleOperator:
		return []string{
			PermissionMerchantRead,
			PermissionPaymentCreate,
			PermissionReportsRead,
		}
	default:
		return []string{}
	}
}
