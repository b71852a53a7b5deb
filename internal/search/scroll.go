package search

// Rect is the vertical extent of a box in viewport coordinates.
type Rect struct {
	Top    float64
	Height float64
}

const topScrollPadding = 20

// CenterScrollTop is the container scrollTop that centres elem inside container.
func CenterScrollTop(container Rect, scrollTop float64, elem Rect) float64 {
	return scrollTop + (elem.Top - container.Top) - container.Height/2 + elem.Height/2
}

// TopScrollTop is the container scrollTop that puts elem just below the top edge.
func TopScrollTop(container Rect, scrollTop float64, elem Rect) float64 {
	return scrollTop + (elem.Top - container.Top) - topScrollPadding
}
