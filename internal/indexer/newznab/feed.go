package newznab

import (
	"encoding/xml"
	"fmt"
	"io"
)

// feed is the Newznab RSS response shape, including the torznab attr
// extension used by torrent trackers.
type feed struct {
	XMLName xml.Name    `xml:"rss"`
	Channel feedChannel `xml:"channel"`
}

type feedChannel struct {
	Title string     `xml:"title"`
	Items []feedItem `xml:"item"`
}

type feedItem struct {
	Title     string        `xml:"title"`
	GUID      feedGUID      `xml:"guid"`
	Link      string        `xml:"link"`
	PubDate   string        `xml:"pubDate"`
	Size      int64         `xml:"size"`
	Enclosure feedEnclosure `xml:"enclosure"`
	Attrs     []feedAttr    `xml:"attr"`
}

type feedGUID struct {
	Value string `xml:",chardata"`
}

type feedEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type feedAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func parseFeed(r io.Reader) (*feed, error) {
	var f feed
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return &f, nil
}
