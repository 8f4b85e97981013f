package cmd

import "github.com/mooproxy/mooproxy/internal/domain/command"

// Version is the version string the "version" command and -V/--version
// flag both report.
const Version = command.Version

const licenseText = `mooproxy
Copyright (C) the mooproxy contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
GNU General Public License for more details.`
