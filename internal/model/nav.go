package model

// Neighbors returns the slugs before and after slug in order. Either is empty
// at an edge; both are empty when slug is absent. There is no wrap-around.
func Neighbors(order []string, slug string) (prev, next string) {
	for i, s := range order {
		if s != slug {
			continue
		}
		if i > 0 {
			prev = order[i-1]
		}
		if i < len(order)-1 {
			next = order[i+1]
		}
		return prev, next
	}
	return "", ""
}

func EventSlugs(evs []Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Slug
	}
	return out
}

func BrandSlugs(bs []Brand) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Slug
	}
	return out
}

func CatalogSlugs(cs []CatalogItem) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Slug
	}
	return out
}
