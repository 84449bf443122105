package database

import (
	"fmt"
	"log"

	"github.com/gradekeeper/api/model"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedSubjects(); err != nil {
		return fmt.Errorf("failed to seed subjects: %w", err)
	}

	if err := s.SeedSections(); err != nil {
		return fmt.Errorf("failed to seed sections: %w", err)
	}

	log.Println("Database seeding completed!")
	return nil
}

// SeedSubjects creates the starter subject catalog.
func (s *Seeder) SeedSubjects() error {
	subjects := []model.Subject{
		{Name: "College Algebra", Code: "MATH-101", Description: "Foundations of algebraic reasoning"},
		{Name: "General Chemistry", Code: "CHEM-110", Description: "Matter, structure, and reactions"},
		{Name: "Philippine History", Code: "HIST-120", Description: "Survey of national history"},
	}

	for _, subject := range subjects {
		var existing model.Subject
		err := s.db.Where("code = ?", subject.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := s.db.Create(&subject).Error; err != nil {
			return err
		}
		log.Printf("Seeded subject %s", subject.Code)
	}
	return nil
}

// SeedSections creates one default section per seeded subject.
func (s *Seeder) SeedSections() error {
	var subjects []model.Subject
	if err := s.db.Find(&subjects).Error; err != nil {
		return err
	}

	for _, subject := range subjects {
		name := subject.Code + "-A"
		var existing model.Section
		err := s.db.Where("subject_id = ? AND name = ?", subject.ID, name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		section := model.Section{SubjectID: subject.ID, Name: name}
		if err := s.db.Create(&section).Error; err != nil {
			return err
		}
		log.Printf("Seeded section %s", name)
	}
	return nil
}
