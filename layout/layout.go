// Package layout names the fixed filesystem locations of a private Chef
// server installation.
package layout

// Top level directories.
const (
	ConfigDir  = "/etc/opscode"
	ChefDir    = "/etc/chef"
	VarDir     = "/var/opt/opscode"
	InstallDir = "/opt/opscode"
)

// Credential material written once by the bootstrap sequence.
const (
	WebUIPublicKey   = ConfigDir + "/webui_pub.pem"
	WebUIPrivateKey  = ConfigDir + "/webui_priv.pem"
	WorkerPublicKey  = ConfigDir + "/worker-public.pem"
	WorkerPrivateKey = ConfigDir + "/worker-private.pem"
	PivotalCert      = ConfigDir + "/pivotal.cert"
	PivotalKey       = ConfigDir + "/pivotal.pem"
)

// State files rewritten on every run.
const (
	DarkLaunchFeatures = ConfigDir + "/dark_launch_features.json"
	RunningState       = ConfigDir + "/chef-server-running.json"
)

// Inputs read by a run.
const (
	OverrideFile         = ConfigDir + "/private-chef.yml"
	OverrideFileJSON     = ConfigDir + "/private-chef.json"
	DeprecatedConfigFile = ConfigDir + "/chef-server.json"
	BootstrappedMarker   = VarDir + "/bootstrapped"
)

// Ownership shared by the layout.
const (
	RootUser  = "root"
	RootGroup = "root"
)
