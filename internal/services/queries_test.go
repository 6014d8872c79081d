package services_test

import (
	"testing"

	"task-tracker/internal/models"
	"task-tracker/internal/services"
	"task-tracker/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type QueryServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service services.QueryService
}

func (suite *QueryServiceTestSuite) SetupTest() {
	suite.db = testsupport.NewTestDB(suite.T())
	suite.service = services.NewQueryService()
}

func (suite *QueryServiceTestSuite) task(name string, status models.TaskStatus, deadline string, parent *models.Task, employee *models.Employee) models.Task {
	return testsupport.CreateTask(suite.T(), suite.db, testsupport.TaskFixture{
		Name:     name,
		Status:   status,
		Deadline: date(deadline),
		Parent:   parent,
		Employee: employee,
	})
}

func (suite *QueryServiceTestSuite) TestBusyEmployees_Empty() {
	employees, err := suite.service.BusyEmployees(suite.db)
	suite.Require().NoError(err)
	suite.NotNil(employees)
	suite.Empty(employees)

	alice := testsupport.CreateEmployee(suite.T(), suite.db, "Alice", "Dev")
	suite.task("idle", models.TaskStatusNotStarted, "2024-12-01", nil, &alice)

	employees, err = suite.service.BusyEmployees(suite.db)
	suite.Require().NoError(err)
	suite.Empty(employees)
}

func (suite *QueryServiceTestSuite) TestBusyEmployees_OrderedByActiveTaskCount() {
	alice := testsupport.CreateEmployee(suite.T(), suite.db, "Alice", "Dev")
	bob := testsupport.CreateEmployee(suite.T(), suite.db, "Bob", "Dev")
	carol := testsupport.CreateEmployee(suite.T(), suite.db, "Carol", "Dev")
	testsupport.CreateEmployee(suite.T(), suite.db, "Dave", "Dev")

	suite.task("a1", models.TaskStatusInProgress, "2024-12-01", nil, &alice)
	suite.task("a2", models.TaskStatusCompleted, "2024-12-01", nil, &alice)
	suite.task("b1", models.TaskStatusInProgress, "2024-12-01", nil, &bob)
	suite.task("b2", models.TaskStatusInProgress, "2024-12-01", nil, &bob)
	suite.task("c1", models.TaskStatusInProgress, "2024-12-01", nil, &carol)

	employees, err := suite.service.BusyEmployees(suite.db)
	suite.Require().NoError(err)

	names := make([]string, 0, len(employees))
	for _, e := range employees {
		names = append(names, e.FullName)
	}
	suite.Equal([]string{"Bob", "Alice", "Carol"}, names)
	suite.False(employees[0].CreatedAt.IsZero())
}

func (suite *QueryServiceTestSuite) TestImportantTasks_Scenario() {
	alice := testsupport.CreateEmployee(suite.T(), suite.db, "Alice", "Dev")
	bob := testsupport.CreateEmployee(suite.T(), suite.db, "Bob", "Dev")

	t1 := suite.task("T1", models.TaskStatusCompleted, "2024-12-01", nil, &alice)
	suite.task("T2", models.TaskStatusInProgress, "2024-12-02", &t1, &alice)
	suite.task("T3", models.TaskStatusNotStarted, "2024-12-03", nil, &bob)

	important, err := suite.service.ImportantTasks(suite.db)
	suite.Require().NoError(err)
	suite.Require().Len(important, 1)

	entry := important[0]
	suite.Equal(t1.ID, entry.Task.ID)
	suite.Equal("2024-12-01", entry.Deadline.String())
	suite.Require().Len(entry.Employees, 1)
	suite.Equal(bob.ID, entry.Employees[0].ID)
}

func (suite *QueryServiceTestSuite) TestImportantTasks_FiltersAndOrders() {
	alice := testsupport.CreateEmployee(suite.T(), suite.db, "Alice", "Dev")

	later := suite.task("later", models.TaskStatusNotStarted, "2024-12-10", nil, nil)
	suite.task("later-sub-1", models.TaskStatusInProgress, "2024-12-11", &later, nil)
	suite.task("later-sub-2", models.TaskStatusInProgress, "2024-12-11", &later, nil)

	sooner := suite.task("sooner", models.TaskStatusCompleted, "2024-11-01", nil, nil)
	suite.task("sooner-sub", models.TaskStatusInProgress, "2024-11-02", &sooner, &alice)

	active := suite.task("active-parent", models.TaskStatusInProgress, "2024-10-01", nil, nil)
	suite.task("active-sub", models.TaskStatusInProgress, "2024-10-02", &active, nil)

	quiet := suite.task("quiet-parent", models.TaskStatusNotStarted, "2024-10-01", nil, nil)
	suite.task("quiet-sub", models.TaskStatusCompleted, "2024-10-02", &quiet, nil)

	important, err := suite.service.ImportantTasks(suite.db)
	suite.Require().NoError(err)
	suite.Require().Len(important, 2, "each qualifying task appears once")
	suite.Equal(sooner.ID, important[0].Task.ID)
	suite.Equal(later.ID, important[1].Task.ID)
}

func (suite *QueryServiceTestSuite) TestImportantTasks_NoEmployees() {
	parent := suite.task("parent", models.TaskStatusNotStarted, "2024-12-01", nil, nil)
	suite.task("sub", models.TaskStatusInProgress, "2024-12-02", &parent, nil)

	important, err := suite.service.ImportantTasks(suite.db)
	suite.Require().NoError(err)
	suite.Require().Len(important, 1)
	suite.NotNil(important[0].Employees)
	suite.Empty(important[0].Employees)
}

func (suite *QueryServiceTestSuite) TestImportantTasks_AppendsParentAssignee() {
	alice := testsupport.CreateEmployee(suite.T(), suite.db, "Alice", "Dev")
	bob := testsupport.CreateEmployee(suite.T(), suite.db, "Bob", "Dev")

	epic := suite.task("epic", models.TaskStatusInProgress, "2024-12-01", nil, &alice)
	story := suite.task("story", models.TaskStatusNotStarted, "2024-12-02", &epic, nil)
	suite.task("subtask", models.TaskStatusInProgress, "2024-12-03", &story, &bob)

	// Alice holds one task, Bob holds one task; both are least loaded.
	important, err := suite.service.ImportantTasks(suite.db)
	suite.Require().NoError(err)
	suite.Require().Len(important, 1)
	suite.Equal(story.ID, important[0].Task.ID)
	suite.Len(important[0].Employees, 2)

	suite.task("extra", models.TaskStatusNotStarted, "2024-12-04", nil, &alice)

	important, err = suite.service.ImportantTasks(suite.db)
	suite.Require().NoError(err)
	employees := important[0].Employees
	suite.Require().Len(employees, 2)
	suite.Equal(bob.ID, employees[0].ID)
	suite.Equal(alice.ID, employees[1].ID, "parent assignee within min+2 is appended")
}

func TestQueryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(QueryServiceTestSuite))
}

func load(id uint, name string, count int) services.EmployeeLoad {
	return services.EmployeeLoad{Employee: models.Employee{ID: id, FullName: name}, TaskCount: count}
}

func ids(employees []models.Employee) []uint {
	out := make([]uint, 0, len(employees))
	for _, e := range employees {
		out = append(out, e.ID)
	}
	return out
}

func TestSuggestAssignees(t *testing.T) {
	parent := func(id uint) *uint { return &id }

	loads := []services.EmployeeLoad{
		load(1, "Alice", 0),
		load(2, "Bob", 2),
		load(3, "Carol", 0),
		load(4, "Dave", 3),
	}

	tests := []struct {
		name     string
		loads    []services.EmployeeLoad
		parent   *uint
		expected []uint
	}{
		{"no employees", nil, nil, []uint{}},
		{"least loaded only", loads, nil, []uint{1, 3}},
		{"parent already least loaded", loads, parent(1), []uint{1, 3}},
		{"parent within two of minimum", loads, parent(2), []uint{1, 3, 2}},
		{"parent too busy", loads, parent(4), []uint{1, 3}},
		{"parent not an employee", loads, parent(9), []uint{1, 3}},
		{"minimum above zero", []services.EmployeeLoad{load(1, "Alice", 4), load(2, "Bob", 5)}, parent(2), []uint{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.SuggestAssignees(tt.loads, tt.parent)
			assert.NotNil(t, got)
			assert.Equal(t, tt.expected, ids(got))
		})
	}
}
