package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
)

// FileCatalog はJSONファイルから読み込んだ座席配置を提供する
// ファイルは SeatMap 1件、または SeatMap の配列
type FileCatalog struct {
	maps map[string]*event.SeatMap
	ids  []string
}

// LoadFile は path の座席配置を読み込んで検証する
func LoadFile(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("座席配置ファイルの読み込みに失敗: %w", err)
	}
	return Parse(data)
}

// Parse はJSONから FileCatalog を作成する
func Parse(data []byte) (*FileCatalog, error) {
	var maps []*event.SeatMap
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &maps); err != nil {
			return nil, fmt.Errorf("座席配置の解析に失敗: %w", err)
		}
	} else {
		var m event.SeatMap
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("座席配置の解析に失敗: %w", err)
		}
		maps = append(maps, &m)
	}

	c := &FileCatalog{maps: make(map[string]*event.SeatMap, len(maps))}
	for _, m := range maps {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("座席配置 %q が不正です: %w", m.EventID, err)
		}
		if _, dup := c.maps[m.EventID]; dup {
			return nil, fmt.Errorf("座席配置 %q が重複しています", m.EventID)
		}
		c.maps[m.EventID] = m
		c.ids = append(c.ids, m.EventID)
	}
	return c, nil
}

func (c *FileCatalog) ListSeatMaps(ctx context.Context) ([]*event.SeatMap, error) {
	out := make([]*event.SeatMap, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.maps[id])
	}
	return out, nil
}

func (c *FileCatalog) GetSeatMap(ctx context.Context, eventID string) (*event.SeatMap, error) {
	m, ok := c.maps[eventID]
	if !ok {
		return nil, event.ErrSeatMapNotFound
	}
	return m, nil
}

var _ event.Catalog = (*FileCatalog)(nil)
