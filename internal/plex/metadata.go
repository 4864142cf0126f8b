package plex

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrMetadataParse 表示响应体无法解析为 MediaContainer 文档。
var ErrMetadataParse = errors.New("metadata document could not be parsed")

// Part 是一个可播放分片：Key 为请求路径，File 为源站报告的绝对文件路径。
type Part struct {
	Key  string `json:"key" xml:"key,attr"`
	File string `json:"file" xml:"file,attr"`
}

// Media 对应一个编码版本，包含若干 Part。
type Media struct {
	Parts []Part `json:"Part" xml:"Part"`
}

// Metadata 是 MediaContainer 中的一项（电影、剧集、音轨……）。
type Metadata struct {
	Media []Media `json:"Media" xml:"Media"`
}

// MediaContainer is the envelope of every metadata response.
type MediaContainer struct {
	XMLName xml.Name `json:"-" xml:"MediaContainer"`
	// XML responses name each item by its kind (Video, Directory, Track), so
	// every child element is accepted there.
	Metadata []Metadata `json:"Metadata" xml:",any"`
}

type document struct {
	MediaContainer *MediaContainer `json:"MediaContainer"`
}

// ParseParts 解析元数据响应并返回其中所有 key/file 均非空的 Part。
// contentType 为空时根据首个非空白字节判断 JSON 或 XML。
func ParseParts(body []byte, contentType string) ([]Part, error) {
	container, err := decode(body, contentType)
	if err != nil {
		return nil, err
	}

	var parts []Part
	for _, md := range container.Metadata {
		for _, media := range md.Media {
			for _, part := range media.Parts {
				if part.Key == "" || part.File == "" {
					continue
				}
				parts = append(parts, part)
			}
		}
	}
	return parts, nil
}

func decode(body []byte, contentType string) (*MediaContainer, error) {
	if isXML(body, contentType) {
		var container MediaContainer
		if err := xml.Unmarshal(body, &container); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
		}
		return &container, nil
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	if doc.MediaContainer == nil {
		return nil, fmt.Errorf("%w: MediaContainer missing", ErrMetadataParse)
	}
	return doc.MediaContainer, nil
}

func isXML(body []byte, contentType string) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return false
	case strings.Contains(ct, "xml"):
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}
