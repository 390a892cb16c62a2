package importer

import (
	"strconv"
	"strings"
)

// Employee is a directory entry for a known employee.
type Employee struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// dirEntry pairs an employee with its precomputed name token set so fuzzy
// matching does not re-tokenize the whole directory per row.
type dirEntry struct {
	emp    *Employee
	tokens []string
}

// Directory is a point-in-time snapshot of known employees, indexed four
// ways. It is built once per import and handed read-only to every batch
// worker; nothing in the pipeline mutates it after BuildDirectory returns.
type Directory struct {
	ByID        map[string]*Employee
	ByEmail     map[string]*Employee
	ByShortName map[string]*Employee
	ByFullName  map[string]*Employee

	entries []dirEntry
}

// BuildDirectory indexes employees by id, lower-cased email, lower-cased
// short name, and lower-cased full name. On key collisions the first
// employee wins, matching the stable ordering of the directory query.
func BuildDirectory(employees []Employee) *Directory {
	dir := &Directory{
		ByID:        make(map[string]*Employee, len(employees)),
		ByEmail:     make(map[string]*Employee, len(employees)),
		ByShortName: make(map[string]*Employee, len(employees)),
		ByFullName:  make(map[string]*Employee, len(employees)),
		entries:     make([]dirEntry, 0, len(employees)),
	}

	for i := range employees {
		emp := &employees[i]

		id := strconv.Itoa(emp.ID)
		if _, ok := dir.ByID[id]; !ok {
			dir.ByID[id] = emp
		}
		if email := strings.ToLower(strings.TrimSpace(emp.Email)); email != "" {
			if _, ok := dir.ByEmail[email]; !ok {
				dir.ByEmail[email] = emp
			}
		}
		if short := strings.ToLower(strings.TrimSpace(emp.Name)); short != "" {
			if _, ok := dir.ByShortName[short]; !ok {
				dir.ByShortName[short] = emp
			}
		}
		if full := strings.ToLower(strings.TrimSpace(emp.FullName)); full != "" {
			if _, ok := dir.ByFullName[full]; !ok {
				dir.ByFullName[full] = emp
			}
		}

		name := emp.FullName
		if name == "" {
			name = emp.Name
		}
		if tokens := Tokenize(name); len(tokens) > 0 {
			dir.entries = append(dir.entries, dirEntry{emp: emp, tokens: tokens})
		}
	}

	return dir
}

// Size returns the number of employees in the snapshot.
func (d *Directory) Size() int {
	return len(d.ByID)
}
