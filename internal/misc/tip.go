package misc

type Tip struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Category string `json:"category"`
}

func NewTip(text string, source string, category string) *Tip {
	return &Tip{
		Text:     text,
		Source:   source,
		Category: category,
	}
}
