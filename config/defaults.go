package config

import (
	"github.com/ruteri/private-chef-provisioner/layout"
)

// Services lists every supervised component in the order they are configured.
var Services = []string{
	"drbd",
	"couchdb",
	"rabbitmq",
	"postgresql",
	"mysql",
	"redis",
	"opscode-authz",
	"opscode-certificate",
	"opscode-account",
	"opscode-solr",
	"opscode-expander",
	"bootstrap",
	"opscode-org-creator",
	"opscode-chef",
	"opscode-erchef",
	"opscode-webui",
	"nagios",
	"nrpe",
	"nginx",
	"keepalived",
}

// PostSteps are configured on every run after the services.
var PostSteps = []string{
	"orgmapper",
	"opscode-pedant",
	"partybus",
}

// DefaultRunList is recorded in the running-state snapshot.
var DefaultRunList = []string{"recipe[private-chef::default]"}

// disabledByDefault are services that only make sense in HA or legacy setups.
var disabledByDefault = map[string]bool{
	"drbd":       true,
	"mysql":      true,
	"keepalived": true,
}

var serviceCommands = map[string]string{
	"couchdb":             layout.InstallDir + "/embedded/bin/couchdb -a " + layout.VarDir + "/couchdb/etc/local.ini",
	"rabbitmq":            layout.InstallDir + "/embedded/bin/rabbitmq-server",
	"postgresql":          layout.InstallDir + "/embedded/bin/postgres -D " + layout.VarDir + "/postgresql/data",
	"mysql":               layout.InstallDir + "/embedded/bin/mysqld_safe",
	"redis":               layout.InstallDir + "/embedded/bin/redis-server " + layout.VarDir + "/redis/etc/redis.conf",
	"opscode-authz":       layout.InstallDir + "/embedded/service/opscode-authz/bin/opscode-authz foreground",
	"opscode-certificate": layout.InstallDir + "/embedded/service/opscode-certificate/bin/opscode-certificate foreground",
	"opscode-account":     layout.InstallDir + "/embedded/bin/unicorn -c " + layout.VarDir + "/opscode-account/etc/unicorn.rb",
	"opscode-solr":        layout.InstallDir + "/embedded/bin/java -jar " + layout.InstallDir + "/embedded/service/opscode-solr/jetty/start.jar",
	"opscode-expander":    layout.InstallDir + "/embedded/service/opscode-expander/bin/opscode-expander -c " + layout.VarDir + "/opscode-expander/etc/expander.rb",
	"opscode-org-creator": layout.InstallDir + "/embedded/service/opscode-org-creator/bin/opscode-org-creator foreground",
	"opscode-chef":        layout.InstallDir + "/embedded/bin/unicorn -c " + layout.VarDir + "/opscode-chef/etc/unicorn.rb",
	"opscode-erchef":      layout.InstallDir + "/embedded/service/opscode-erchef/bin/oc_erchef foreground",
	"opscode-webui":       layout.InstallDir + "/embedded/bin/unicorn -c " + layout.VarDir + "/opscode-webui/etc/unicorn.rb",
	"nagios":              layout.InstallDir + "/embedded/bin/nagios " + layout.VarDir + "/nagios/etc/nagios.cfg",
	"nrpe":                layout.InstallDir + "/embedded/bin/nrpe -c " + layout.VarDir + "/nrpe/etc/nrpe.cfg -f",
	"nginx":               layout.InstallDir + "/embedded/sbin/nginx -c " + layout.VarDir + "/nginx/etc/nginx.conf",
	"keepalived":          layout.InstallDir + "/embedded/sbin/keepalived --dont-fork --use-file " + layout.VarDir + "/keepalived/etc/keepalived.conf",
}

// Defaults returns the built-in private_chef attribute tree. The returned
// tree is freshly allocated on every call.
func Defaults() map[string]any {
	tree := map[string]any{
		"install_dir": layout.InstallDir,
		"var_dir":     layout.VarDir,
		"log_dir":     "/var/log/opscode",
		"user": map[string]any{
			"username": "opscode",
			"shell":    "/bin/sh",
			"home":     layout.InstallDir + "/embedded",
		},
		"runit": map[string]any{
			"sv_dir":      layout.InstallDir + "/sv",
			"service_dir": layout.InstallDir + "/service",
		},
		"dark_launch": map[string]any{
			"quick_start":               false,
			"new_theme":                 true,
			"private-chef":              true,
			"sql_users":                 true,
			"add_type_and_bag_to_items": true,
			"reporting":                 false,
		},
		"credentials": map[string]any{
			"policy":   "coupled",
			"key_bits": 2048,
		},
		"orgmapper": map[string]any{
			"enable": true,
		},
		"opscode-pedant": map[string]any{
			"enable": true,
		},
		"partybus": map[string]any{
			"enable":           true,
			"bootstrap_server": true,
		},
	}

	for _, svc := range Services {
		section := map[string]any{
			"enable":        !disabledByDefault[svc],
			"log_directory": "/var/log/opscode/" + svc,
		}
		if cmd, ok := serviceCommands[svc]; ok {
			section["command"] = cmd
		}
		tree[svc] = section
	}

	bootstrap := tree["bootstrap"].(map[string]any)
	bootstrap["command"] = layout.InstallDir + "/embedded/bin/chef-server-bootstrap"

	return tree
}
