package stage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/LilVoxy/delivery_analytics/ETL/config"
	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

// ZoneInfo is the descriptive side of a zone code
type ZoneInfo struct {
	Name string
	City string
}

// ZoneCatalog knows which zone codes are recognized and what they are called
type ZoneCatalog struct {
	postal      *regexp.Regexp
	token       *regexp.Regexp
	known       map[string]bool
	info        map[string]ZoneInfo
	aliases     map[string]string // folded free text -> code
	defaultCity string
}

// NewZoneCatalog compiles the zone section of the configuration
func NewZoneCatalog(cfg config.ZoneConfig) (*ZoneCatalog, error) {
	c := &ZoneCatalog{
		known:       make(map[string]bool),
		info:        make(map[string]ZoneInfo),
		aliases:     make(map[string]string),
		defaultCity: cfg.DefaultCity,
	}

	var err error
	if cfg.PostalPattern != "" {
		if c.postal, err = regexp.Compile(cfg.PostalPattern); err != nil {
			return nil, fmt.Errorf("compile postal pattern: %w", err)
		}
	}
	if cfg.TokenPattern != "" {
		if c.token, err = regexp.Compile(cfg.TokenPattern); err != nil {
			return nil, fmt.Errorf("compile zone token pattern: %w", err)
		}
	}

	for _, code := range cfg.Known {
		c.known[normalizeZoneText(code)] = true
	}
	for _, entry := range cfg.Lookup {
		code := normalizeZoneText(entry.Code)
		c.known[code] = true
		c.info[code] = ZoneInfo{Name: strings.TrimSpace(entry.Name), City: strings.TrimSpace(entry.City)}
		if entry.Name != "" {
			c.aliases[models.FoldName(entry.Name)] = code
		}
		for _, alias := range entry.Aliases {
			c.aliases[models.FoldName(alias)] = code
		}
	}
	return c, nil
}

// Normalize turns free zone text into a zone code, resolving names
// listed in the lookup ("Palermo" -> "1425")
func (c *ZoneCatalog) Normalize(text string) string {
	if code, ok := c.aliases[models.FoldName(text)]; ok {
		return code
	}
	return normalizeZoneText(text)
}

// Recognized reports whether code is a postal code, a zone token or a known zone
func (c *ZoneCatalog) Recognized(code string) bool {
	if code == "" {
		return false
	}
	if c.known[code] {
		return true
	}
	if c.postal != nil && c.postal.MatchString(code) {
		return true
	}
	return c.token != nil && c.token.MatchString(code)
}

// Listed reports whether the lookup names the zone explicitly
func (c *ZoneCatalog) Listed(code string) bool {
	_, ok := c.info[code]
	return ok
}

// Describe returns the zone's name and city; unlisted zones are named after
// their code and placed in the default city
func (c *ZoneCatalog) Describe(code string) ZoneInfo {
	info := c.info[code]
	if info.Name == "" {
		info.Name = code
	}
	if info.City == "" {
		info.City = c.defaultCity
	}
	return info
}
