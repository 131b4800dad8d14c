package distribution

// apiDailyRow is one day of storefront analytics.
type apiDailyRow struct {
	Date          string  `json:"date"`
	Downloads     float64 `json:"downloads"`
	Revenue       float64 `json:"revenue"`
	ActiveDevices float64 `json:"active_devices"`
	PayingUsers   float64 `json:"paying_users"`
}

// apiDailyResponse is the daily-metrics endpoint envelope.
type apiDailyResponse struct {
	Currency string        `json:"currency"`
	Data     []apiDailyRow `json:"data"`
}

// apiErrorBody is the error envelope returned with non-2xx statuses.
type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
