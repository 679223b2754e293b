package model

// カタログサービスから取得する商品スナップショット。ここでは永続化しない。
type Product struct {
	DishID       string `json:"dish_id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	Available    bool   `json:"available"`
	RestaurantID string `json:"restaurant_id"`
	ImageURL     string `json:"image_url"`
	Category     string `json:"category"`
}
