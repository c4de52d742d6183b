package plants

import (
	"iter"
	"sort"
)

// InitialPhotoId identifies the photo taken when the plant was registered.
const InitialPhotoId = "initial"

// Photo is derived from a plant's registration image or from a log entry
// image. Photos are never stored.
type Photo struct {
	Id   string   `json:"id"`
	Date Date     `json:"date"`
	Url  ImageRef `json:"url"`
}

// Timeline returns the photos of p in chronological order. Photos of the same
// day keep their encounter order: the initial photo first, then the logs as
// stored. The sequence is rebuilt from p on every iteration.
func Timeline(p Plant) iter.Seq[Photo] {
	return func(yield func(Photo) bool) {
		for _, photo := range collectPhotos(p) {
			if !yield(photo) {
				return
			}
		}
	}
}

// Photos returns the timeline of p as a slice.
func Photos(p Plant) []Photo {
	return collectPhotos(p)
}

func collectPhotos(p Plant) []Photo {
	photos := make([]Photo, 0, len(p.Logs)+1)
	if p.Image != "" {
		photos = append(photos, Photo{InitialPhotoId, p.DateAdded, p.Image})
	}
	for _, e := range p.Logs {
		if e.Image != "" {
			photos = append(photos, Photo{e.Id, e.Date, e.Image})
		}
	}
	sortByDate(photos)
	return photos
}

func sortByDate(photos []Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].Date.Before(photos[j].Date)
	})
}
