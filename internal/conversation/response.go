package conversation

// Response is one logical reply. Channels may split it into several messages.
type Response interface {
	isResponse()
}

// Option is a labelled button carrying a postback token.
type Option struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// TextMessage is plain text.
type TextMessage struct {
	Text string `json:"text"`
}

// CategoryList asks the customer to pick one of Options.
type CategoryList struct {
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// ProductCard is one product in a ProductList.
type ProductCard struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Option `json:"buttons"`
}

// ProductList shows products as cards.
type ProductList struct {
	Title    string        `json:"title"`
	Products []ProductCard `json:"products"`
}

// Detail describes one product with follow-up buttons.
type Detail struct {
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Option `json:"buttons"`
}

func (TextMessage) isResponse()  {}
func (CategoryList) isResponse() {}
func (ProductList) isResponse()  {}
func (Detail) isResponse()       {}
