// Package party provides read access to customers and employees.
package party

// Role classifies an employee on the flat staff record.
type Role string

const (
	RoleDriver   Role = "DRIVER"
	RoleSalesman Role = "SALESMAN"
	RoleManager  Role = "MANAGER"
	RoleOperator Role = "OPERATOR"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleDriver, RoleSalesman, RoleManager, RoleOperator:
		return true
	default:
		return false
	}
}

// Customer is the display and ledger-account projection of a customer.
type Customer struct {
	ID            int64  `json:"id" db:"id"`
	Code          string `json:"code" db:"code"`
	Name          string `json:"name" db:"name"`
	Area          string `json:"area" db:"area"`
	CityCode      string `json:"city_code" db:"city_code"`
	LicenseNumber string `json:"license_number" db:"license_number"`
	IsActive      bool   `json:"is_active" db:"is_active"`
}

// Employee is the flat staff record. Capabilities are derived from the role
// rather than modelled as subtypes.
type Employee struct {
	ID       int64  `json:"id" db:"id"`
	Code     string `json:"code" db:"code"`
	Name     string `json:"name" db:"name"`
	Area     string `json:"area" db:"area"`
	Role     Role   `json:"role" db:"role"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// CanDrive reports whether the employee may be assigned deliveries.
func (e Employee) CanDrive() bool {
	return e.Role == RoleDriver
}

// CanSell reports whether the employee may book sales.
func (e Employee) CanSell() bool {
	return e.Role == RoleSalesman
}
