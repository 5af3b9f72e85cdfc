package tests

import (
	"log"
	"os"
	"testing"
	"time"

	enLocale "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/module"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	testutil "github.com/trezcool/darasa/tests"
)

var (
	db      *testutil.DB
	app     Server
	conf    *core.Config
	usrRepo user.Repository
	crsRepo course.Repository
	modRepo module.Repository
	mailSvc *emailsvc.MockService
	storage *fakeStorage

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Wizard.FlushTimeout = 500 * time.Millisecond

	// set up DB & repos
	db = testutil.NewDB()
	usrRepo = testutil.NewUserRepository(db)
	crsRepo = testutil.NewCourseRepository(db)
	modRepo = testutil.NewModuleRepository(db)

	// set up services
	mailSvc = emailsvc.NewMockService()
	usrSvc := user.NewService(nil, usrRepo, mailSvc, conf)
	crsSvc := course.NewService(nil, crsRepo, conf)
	modSvc := module.NewService(nil, modRepo, crsSvc, mailSvc, conf)

	// set up validation
	_en := enLocale.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	module.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile), conf)
	storage = newFakeStorage()

	// set up server
	app = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		CourseSvc:  crsSvc,
		ModuleSvc:  modSvc,
		Storage:    storage,
		Validate:   validate,
		Translator: translator,
	})

	os.Exit(m.Run())
}
