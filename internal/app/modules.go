package app

import (
	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/modules/env_vars"
	"github.com/vk/pointyflow/modules/httpfetch"
	"github.com/vk/pointyflow/modules/notify"
	"github.com/vk/pointyflow/modules/print"
)

// coreModules is the definitive list of all task modules compiled into the
// pointyflow binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&print.Module{},
	&httpfetch.Module{},
	&notify.Module{},
}
