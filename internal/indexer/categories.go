package indexer

// Standard Newznab categories.
// https://newznab.readthedocs.io/en/latest/misc/api/#predefined-categories
const (
	// Main categories
	CategoryConsole = 1000
	CategoryMovies  = 2000
	CategoryAudio   = 3000
	CategoryPC      = 4000
	CategoryTV      = 5000
	CategoryXXX     = 6000
	CategoryBooks   = 7000
	CategoryOther   = 8000

	// Movies subcategories
	CategoryMoviesForeign = 2010
	CategoryMoviesOther   = 2020
	CategoryMoviesSD      = 2030
	CategoryMoviesHD      = 2040
	CategoryMoviesUHD     = 2045
	CategoryMoviesBluRay  = 2050
	CategoryMovies3D      = 2060
	CategoryMoviesDVD     = 2070
	CategoryMoviesWebDL   = 2080

	// TV subcategories
	CategoryTVForeign = 5010
	CategoryTVOther   = 5020
	CategoryTVSD      = 5030
	CategoryTVHD      = 5040
	CategoryTVUHD     = 5045
	CategoryTVSport   = 5060
	CategoryTVAnime   = 5070
	CategoryTVDoc     = 5080
	CategoryTVWebDL   = 5090
)

// ContentType is the coarse content classification of a category.
type ContentType string

const (
	ContentTypeMovie ContentType = "movie"
	ContentTypeTV    ContentType = "tv"
	ContentTypeMusic ContentType = "music"
	ContentTypeBook  ContentType = "book"
	ContentTypeOther ContentType = "other"
)

// GetCategoryContentType maps a category id to its content type. Leaf
// categories inherit their parent range's type.
func GetCategoryContentType(id int) ContentType {
	switch {
	case id >= 2000 && id <= 2999:
		return ContentTypeMovie
	case id >= 5000 && id <= 5999:
		return ContentTypeTV
	case id >= 3000 && id <= 3999:
		return ContentTypeMusic
	case id >= 7000 && id <= 7999:
		return ContentTypeBook
	default:
		return ContentTypeOther
	}
}

// IsMovieCategory returns true if the category is in the movies range.
func IsMovieCategory(id int) bool {
	return GetCategoryContentType(id) == ContentTypeMovie
}

// IsTVCategory returns true if the category is in the TV range.
func IsTVCategory(id int) bool {
	return GetCategoryContentType(id) == ContentTypeTV
}

// CategoryName returns a human-readable name for a category.
func CategoryName(id int) string {
	names := map[int]string{
		CategoryConsole:       "Console",
		CategoryMovies:        "Movies",
		CategoryMoviesForeign: "Movies/Foreign",
		CategoryMoviesOther:   "Movies/Other",
		CategoryMoviesSD:      "Movies/SD",
		CategoryMoviesHD:      "Movies/HD",
		CategoryMoviesUHD:     "Movies/UHD",
		CategoryMoviesBluRay:  "Movies/BluRay",
		CategoryMovies3D:      "Movies/3D",
		CategoryMoviesDVD:     "Movies/DVD",
		CategoryMoviesWebDL:   "Movies/WEB-DL",
		CategoryAudio:         "Audio",
		CategoryPC:            "PC",
		CategoryTV:            "TV",
		CategoryTVForeign:     "TV/Foreign",
		CategoryTVOther:       "TV/Other",
		CategoryTVSD:          "TV/SD",
		CategoryTVHD:          "TV/HD",
		CategoryTVUHD:         "TV/UHD",
		CategoryTVSport:       "TV/Sport",
		CategoryTVAnime:       "TV/Anime",
		CategoryTVDoc:         "TV/Documentary",
		CategoryTVWebDL:       "TV/WEB-DL",
		CategoryXXX:           "XXX",
		CategoryBooks:         "Books",
		CategoryOther:         "Other",
	}
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}
