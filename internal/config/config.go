package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort string
	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration

	TesseractPath string
	TessdataDir   string
	OCRLang       string
	OCROEM        int
	OCRPSM        int
	OCRTimeout    time.Duration
	OCRRPS        int

	PdftoppmPath string
	PDFDPI       int

	Workers    int
	FailFast   bool
	PreviewMax int

	RedisAddr   string
	RedisDB     int
	OCRCacheTTL time.Duration

	AllowedFileExt []string
}

// Load reads .env (if present) and the process environment. Malformed
// numbers and durations are reported instead of silently zeroed.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	c := &Config{
		AppEnv:          GetEnv("APP_ENV", "dev"),
		AppPort:         GetEnv("APP_PORT", "8080"),
		CORSOrigins:     split(GetEnv("CORS_ORIGINS", "http://localhost:5173")),
		RateLimitMax:    p.atoi("RATE_LIMIT_MAX", "10"),
		RateLimitWindow: p.duration("RATE_LIMIT_WINDOW", "1m"),
		TesseractPath:   GetEnv("TESSERACT_PATH", "tesseract"),
		TessdataDir:     GetEnv("TESSDATA_PREFIX", ""),
		OCRLang:         GetEnv("OCR_LANG", "fra+ara"),
		OCROEM:          p.atoi("OCR_OEM", "3"),
		OCRPSM:          p.atoi("OCR_PSM", "6"),
		OCRTimeout:      p.duration("OCR_TIMEOUT", "2m"),
		OCRRPS:          p.atoi("OCR_RPS", "0"),
		PdftoppmPath:    GetEnv("PDFTOPPM_PATH", "pdftoppm"),
		PDFDPI:          p.atoi("PDF_DPI", "300"),
		Workers:         p.atoi("WORKERS", "1"),
		FailFast:        p.parseBool("FAIL_FAST", "false"),
		PreviewMax:      p.atoi("PREVIEW_MAX", "400"),
		RedisAddr:       GetEnv("REDIS_ADDR", ""),
		RedisDB:         p.atoi("REDIS_DB", "0"),
		OCRCacheTTL:     p.duration("OCR_CACHE_TTL", "168h"),
		AllowedFileExt:  GetEnvList("ALLOWED_FILE_EXT", []string{".jpg", ".jpeg", ".png", ".pdf"}),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.OCRLang == "":
		return fmt.Errorf("OCR_LANG must not be empty")
	case c.OCRPSM < 0 || c.OCRPSM > 13:
		return fmt.Errorf("OCR_PSM out of range: %d", c.OCRPSM)
	case c.OCROEM < 0 || c.OCROEM > 3:
		return fmt.Errorf("OCR_OEM out of range: %d", c.OCROEM)
	case c.PDFDPI <= 0:
		return fmt.Errorf("PDF_DPI must be positive: %d", c.PDFDPI)
	case c.Workers < 1:
		return fmt.Errorf("WORKERS must be at least 1: %d", c.Workers)
	case c.OCRRPS < 0:
		return fmt.Errorf("OCR_RPS must not be negative: %d", c.OCRRPS)
	case c.RateLimitMax < 1:
		return fmt.Errorf("RATE_LIMIT_MAX must be at least 1: %d", c.RateLimitMax)
	}
	return nil
}

// Languages splits OCRLang ("fra+ara") into tesseract language codes.
func (c *Config) Languages() []string {
	var out []string
	for _, l := range strings.Split(c.OCRLang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return strings.Split(v, ",")
	}
	return d
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parser keeps the first conversion error so Load can report it once.
type parser struct{ err error }

func (p *parser) atoi(k, d string) int {
	v := GetEnv(k, d)
	i, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return i
}

func (p *parser) parseBool(k, d string) bool {
	v := GetEnv(k, d)
	b, err := strconv.ParseBool(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return b
}

func (p *parser) duration(k, d string) time.Duration {
	v := GetEnv(k, d)
	dur, err := time.ParseDuration(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return dur
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
