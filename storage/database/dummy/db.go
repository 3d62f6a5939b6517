package dummydb

import (
	"sync"

	"github.com/darasahq/darasa/core/academics"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/schoolyear"
	"github.com/darasahq/darasa/core/user"
)

type (
	DB struct {
		user      *userTable
		audit     *auditTable
		year      *schoolYearTable
		academics *academicsTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	auditTable struct {
		sync.RWMutex
		table map[string]*audit.Entry
	}

	schoolYearTable struct {
		sync.RWMutex
		years   map[string]*schoolyear.SchoolYear
		periods map[string]*schoolyear.EvaluationPeriod
		// level IDs linked per year
		yearLevels map[string][]string
		classes    map[string]*schoolClass
		groups     map[string]*schoolGroup
	}

	schoolClass struct {
		ID           string
		SchoolYearID string
		Archived     bool
	}

	schoolGroup struct {
		ID            string
		SchoolClassID string
		Archived      bool
	}

	academicsTables struct {
		sync.RWMutex
		levels     map[string]*academics.Level
		periods    map[string]*academics.CoursePeriod
		units      map[string]*academics.AbsenceUnit
		categories map[string]*academics.SubjectCategory
		subjects   map[string]*academics.Subject
		settings   *academics.SchoolSettings
		// level IDs referenced by years or classes
		levelRefs map[string]int
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:  &userTable{table: make(map[string]*user.User)},
		audit: &auditTable{table: make(map[string]*audit.Entry)},
		year: &schoolYearTable{
			years:      make(map[string]*schoolyear.SchoolYear),
			periods:    make(map[string]*schoolyear.EvaluationPeriod),
			yearLevels: make(map[string][]string),
			classes:    make(map[string]*schoolClass),
			groups:     make(map[string]*schoolGroup),
		},
		academics: &academicsTables{
			levels:     make(map[string]*academics.Level),
			periods:    make(map[string]*academics.CoursePeriod),
			units:      make(map[string]*academics.AbsenceUnit),
			categories: make(map[string]*academics.SubjectCategory),
			subjects:   make(map[string]*academics.Subject),
			levelRefs:  make(map[string]int),
		},
	}
	return db, nil
}
