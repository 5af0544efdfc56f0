package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trade-closeout/internal/invoice"
	"trade-closeout/internal/models"

	"gopkg.in/yaml.v3"
)

// Profile — настройки tradectl, хранятся в YAML между запусками.
type Profile struct {
	BaseURL      string          `yaml:"base_url"`
	Token        string          `yaml:"token,omitempty"`
	Username     string          `yaml:"username,omitempty"`
	Role         models.UserRole `yaml:"role,omitempty"`
	PollInterval time.Duration   `yaml:"poll_interval,omitempty"`
}

const defaultBaseURL = "http://localhost:8080"

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tradectl.yaml"
	}
	return filepath.Join(dir, "tradectl", "config.yaml")
}

// loadProfile читает профиль; отсутствующий файл — профиль по умолчанию.
func loadProfile(path string) (*Profile, error) {
	p := &Profile{BaseURL: defaultBaseURL, PollInterval: invoice.DefaultPollInterval}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}

	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		p.BaseURL = defaultBaseURL
	}
	if p.PollInterval <= 0 {
		p.PollInterval = invoice.DefaultPollInterval
	}
	if p.Role != "" && !p.Role.Valid() {
		return nil, fmt.Errorf("profile %s: unknown role %q", path, p.Role)
	}
	return p, nil
}

func saveProfile(path string, p *Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	// в профиле токен, читать его может только владелец
	return os.WriteFile(path, data, 0o600)
}

// loadDefects читает дефекты осмотра из YAML-списка.
//
//	- title: Подтекает смеситель
//	  severity: major
//	  room: Кухня
func loadDefects(path string) ([]models.DefectInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defects: %w", err)
	}
	var list []models.DefectInput
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse defects %s: %w", path, err)
	}
	return list, nil
}

// parseChecklist: "all" или список пунктов через запятую.
func parseChecklist(raw string) (models.Checklist, error) {
	var c models.Checklist
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return c, nil
	}
	for _, item := range strings.Split(raw, ",") {
		switch strings.TrimSpace(strings.ToLower(item)) {
		case "all":
			c = models.Checklist{
				WorkCompleted:     true,
				QualityAcceptable: true,
				SpecificationsMet: true,
				SafetyCompliant:   true,
				CleanedUp:         true,
				DocumentsProvided: true,
			}
		case "work":
			c.WorkCompleted = true
		case "quality":
			c.QualityAcceptable = true
		case "specs":
			c.SpecificationsMet = true
		case "safety":
			c.SafetyCompliant = true
		case "cleanup":
			c.CleanedUp = true
		case "documents":
			c.DocumentsProvided = true
		case "":
		default:
			return c, fmt.Errorf("unknown checklist item %q", item)
		}
	}
	return c, nil
}
