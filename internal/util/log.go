package util

const (
	ComponentKey         string = "component"
	ComponentMain        string = "main"
	ComponentPending     string = "pending authorizations"
	ComponentInitiator   string = "authorization initiator"
	ComponentAcceptor    string = "code acceptor"
	ComponentExchanger   string = "token exchanger"
	ComponentRepository  string = "authorization repository"
	ComponentProvider    string = "provider client"
	ComponentJobRunner   string = "archive job runner"
	ComponentCoordinator string = "pipeline coordinator"
	ComponentDownload    string = "download coordinator"
	ComponentResetter    string = "authorization resetter"
	ComponentStorage     string = "storage"
	ComponentRetriever   string = "archive retriever"
	ComponentFrontDoor   string = "front door"
	ComponentServer      string = "server"
	ComponentValidate    string = "validate"
	ComponentExo         string = "exo"

	ServiceKey         string = "service"
	ServicePortability string = "portability"

	PackageKey           string = "package"
	PackageMain          string = "main"
	PackageApi           string = "api"
	PackageArchive       string = "archive"
	PackageAuthorization string = "authorization"
	PackageConnect       string = "connect"
	PackageExo           string = "exo"
	PackagePipeline      string = "pipeline"
	PackageProvider      string = "provider"
	PackageStorage       string = "storage"
	PackageValidate      string = "validate"
)
