// Package lessons stores the lesson plan catalog searched by the lesson
// plan agent.
package lessons

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Plan is one catalogued lesson plan.
type Plan struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Subject    string    `gorm:"size:50;not null;index" json:"subject"`
	GradeLevel int       `gorm:"not null;index" json:"grade_level"`
	Topic      string    `gorm:"size:100" json:"topic"`
	Summary    string    `gorm:"type:text" json:"summary"`
	Materials  string    `gorm:"type:text" json:"materials,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (Plan) TableName() string { return "lesson_plans" }

// Query narrows a catalog search. Zero fields are ignored.
type Query struct {
	Terms      []string
	Subject    string
	GradeLevel int
	Limit      int
}

// Store searches lesson plans with gorm.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore 创建课程计划存储
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "lesson_store"))}
}

// AutoMigrate creates the lesson_plans table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Plan{}); err != nil {
		return fmt.Errorf("failed to auto migrate lessons: %w", err)
	}
	return nil
}

// Search returns plans matching any term in title, subject, topic, summary
// or materials, best match first. Subject and grade filters are exact.
func (s *Store) Search(ctx context.Context, q Query) ([]Plan, error) {
	if q.Limit <= 0 {
		q.Limit = 3
	}

	db := s.db.WithContext(ctx)
	if q.Subject != "" {
		db = db.Where("LOWER(subject) = ?", strings.ToLower(q.Subject))
	}
	if q.GradeLevel > 0 {
		db = db.Where("grade_level = ?", q.GradeLevel)
	}

	terms := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) > 0 {
		cond := s.db.Where("1 = 0")
		for _, t := range terms {
			like := "%" + t + "%"
			cond = cond.Or("LOWER(title) LIKE ? OR LOWER(subject) LIKE ? OR LOWER(topic) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(materials) LIKE ?",
				like, like, like, like, like)
		}
		db = db.Where(cond)
	}

	var plans []Plan
	if err := db.Order("id").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("search lesson plans: %w", err)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return score(plans[i], terms) > score(plans[j], terms)
	})
	if len(plans) > q.Limit {
		plans = plans[:q.Limit]
	}
	return plans, nil
}

// score counts matched terms, weighting title and topic hits double.
func score(p Plan, terms []string) int {
	title := strings.ToLower(p.Title + " " + p.Topic)
	body := strings.ToLower(p.Subject + " " + p.Summary + " " + p.Materials)
	n := 0
	for _, t := range terms {
		if strings.Contains(title, t) {
			n += 2
		} else if strings.Contains(body, t) {
			n++
		}
	}
	return n
}

// Create inserts a plan.
func (s *Store) Create(ctx context.Context, p *Plan) error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("lesson plan title and subject are required")
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create lesson plan: %w", err)
	}
	return nil
}

// SeedPlans is a small starter catalog.
func SeedPlans() []Plan {
	return []Plan{
		{Title: "Build a Simple Circuit", Subject: "Physics", GradeLevel: 5, Topic: "electricity",
			Summary:   "Students wire a battery, switch and LED on a breadboard and explain open versus closed circuits.",
			Materials: "Breadboards, LED Assortment, Jumper Wires, batteries"},
		{Title: "Cells Under the Microscope", Subject: "Biology", GradeLevel: 7, Topic: "cells",
			Summary:   "Prepare onion skin and cheek cell slides, then compare plant and animal cell structures.",
			Materials: "Microscopes, slides, iodine stain"},
		{Title: "Acids, Bases and Indicators", Subject: "Chemistry", GradeLevel: 8, Topic: "ph",
			Summary:   "Use red cabbage indicator to classify household liquids by pH in a guided experiment.",
			Materials: "Beakers (250ml), Test Tubes, Safety Goggles"},
		{Title: "Blinking LED with Arduino", Subject: "Engineering", GradeLevel: 6, Topic: "programming",
			Summary:   "A first Arduino project: upload a blink sketch and modify the timing to explore loops.",
			Materials: "Arduino Uno Kits, LED Assortment, Jumper Wires"},
		{Title: "Measuring Motion", Subject: "Physics", GradeLevel: 6, Topic: "speed",
			Summary:   "Students time toy cars over a measured track and graph distance against time.",
			Materials: "Stopwatches, tape measures, Notebooks"},
		{Title: "Fractions with Pattern Blocks", Subject: "Math", GradeLevel: 4, Topic: "fractions",
			Summary:   "Hands-on activity building wholes from halves, thirds and sixths with pattern blocks.",
			Materials: "Pattern blocks, worksheet, Pencils"},
	}
}

// Seed inserts the starter catalog unless plans already exist.
func Seed(ctx context.Context, db *gorm.DB, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var n int64
	if err := db.WithContext(ctx).Model(&Plan{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count lesson plans: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	plans := SeedPlans()
	if err := db.WithContext(ctx).Create(&plans).Error; err != nil {
		return 0, fmt.Errorf("seed lesson plans: %w", err)
	}
	logger.Info("lesson plans seeded", zap.Int("count", len(plans)))
	return len(plans), nil
}
