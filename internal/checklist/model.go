package checklist

const dateLayout = "2006-01-02"

type Item struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type ItemStatus struct {
	ItemID  int  `json:"item_id"`
	Checked bool `json:"checked"`
}

type Daily struct {
	Date  string       `json:"date"`
	Items []ItemStatus `json:"items"`
}

type ToggleRequest struct {
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ItemID  int    `json:"item_id" validate:"required,gt=0"`
	Checked *bool  `json:"checked" validate:"required"`
}
