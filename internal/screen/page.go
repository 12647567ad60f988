package screen

import "fmt"

// Page is the view currently shown on the device.
type Page int

const (
	PageGreet Page = iota
	PageStatus
)

// Pages lists every page in navigation order.
var Pages = []Page{PageGreet, PageStatus}

func (p Page) String() string {
	switch p {
	case PageGreet:
		return "greet"
	case PageStatus:
		return "status"
	}
	return fmt.Sprintf("page(%d)", int(p))
}

// Title is the heading drawn at the top of the page.
func (p Page) Title() string {
	switch p {
	case PageGreet:
		return "Greet"
	case PageStatus:
		return "Status"
	}
	return p.String()
}

// Index is the zero-based position of p in Pages.
func (p Page) Index() int {
	for i, candidate := range Pages {
		if candidate == p {
			return i
		}
	}
	return 0
}

// Next returns the following page, staying on the last page.
func (p Page) Next() Page {
	i := p.Index()
	if i >= len(Pages)-1 {
		return Pages[len(Pages)-1]
	}
	return Pages[i+1]
}

// Prev returns the preceding page, staying on the first page.
func (p Page) Prev() Page {
	i := p.Index()
	if i <= 0 {
		return Pages[0]
	}
	return Pages[i-1]
}
