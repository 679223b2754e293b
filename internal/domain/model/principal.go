package model

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleAdmin      Role = "admin"
)

// 認証ミドルウェアがJWTから復元する呼び出し主体。
// restaurantロールのIDは店舗IDと一致する。
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
