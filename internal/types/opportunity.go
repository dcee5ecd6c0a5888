package types

type Opportunity struct {
	Id      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name"`
	Link    string  `json:"link,omitempty"`
	Country string  `json:"country,omitempty"`
}

type RankRequest struct {
	RoomCode      string      `json:"room_code"`
	Opportunities []RankEntry `json:"opportunities"`
}

type RankEntry struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type RankResponse struct {
	RankedIds []string `json:"ranked_ids"`
}
