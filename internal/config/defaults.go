package config

func stringPtr(s string) *string {
	return &s
}

// Sources are the packages resolved when no sources file is configured.
var Sources = []*SourceConfig{
	{
		Name:        "ninja",
		Type:        "github",
		Description: "A small build system with a focus on speed.",
		Repo:        "ninja-build/ninja",
		Assets: map[string]string{
			"linux-amd64":   `^ninja-linux\.zip$`,
			"linux-arm64":   `^ninja-linux-aarch64\.zip$`,
			"mac-amd64":     `^ninja-mac\.zip$`,
			"windows-amd64": `^ninja-win\.zip$`,
			"windows-arm64": `^ninja-winarm64\.zip$`,
		},
		// the mac build is universal
		PlatformMap: map[string]string{
			"mac-arm64": "mac-amd64",
		},
	},
	{
		Name:        "cmake",
		Type:        "github",
		Description: "Cross-platform build system generator.",
		Repo:        "Kitware/CMake",
		Assets: map[string]string{
			"linux-amd64":   `^cmake-{version}-linux-x86_64\.tar\.gz$`,
			"linux-arm64":   `^cmake-{version}-linux-aarch64\.tar\.gz$`,
			"mac-amd64":     `^cmake-{version}-macos-universal\.tar\.gz$`,
			"windows-amd64": `^cmake-{version}-windows-x86_64\.zip$`,
			"windows-arm64": `^cmake-{version}-windows-arm64\.zip$`,
		},
		PlatformMap: map[string]string{
			"mac-arm64": "mac-amd64",
		},
	},
	{
		Name:        "protoc",
		Type:        "github",
		Description: "The protocol buffers compiler.",
		Repo:        "protocolbuffers/protobuf",
		Assets: map[string]string{
			"linux-amd64":   `^protoc-{version}-linux-x86_64\.zip$`,
			"linux-arm64":   `^protoc-{version}-linux-aarch_64\.zip$`,
			"mac-amd64":     `^protoc-{version}-osx-x86_64\.zip$`,
			"mac-arm64":     `^protoc-{version}-osx-aarch_64\.zip$`,
			"windows-amd64": `^protoc-{version}-win64\.zip$`,
			"windows-386":   `^protoc-{version}-win32\.zip$`,
		},
		// there is no native windows-arm64 build
		PlatformMap: map[string]string{
			"windows-arm64": "windows-amd64",
		},
	},
	{
		Name:        "re2c",
		Type:        "github",
		Description: "Lexer generator, released as source tarball only.",
		Repo:        "skvadrik/re2c",
		TagPrefix:   stringPtr(""),
		Assets: map[string]string{
			"linux-amd64": `^re2c-{version}\.tar\.xz$`,
		},
		PlatformMap: map[string]string{
			"linux-arm64": "linux-amd64",
			"mac-amd64":   "linux-amd64",
			"mac-arm64":   "linux-amd64",
		},
	},
	{
		Name:            "nodejs",
		Type:            "scrape",
		Description:     "Node.js runtime from the official distribution index.",
		IndexURL:        "https://nodejs.org/dist/",
		VersionIndexURL: "https://nodejs.org/dist/v{version}/",
		VersionPattern:  `href="v(\d+\.\d+\.\d+)/"`,
		Assets: map[string]string{
			"linux-amd64":   `href="(node-v{version}-linux-x64\.tar\.xz)"`,
			"linux-arm64":   `href="(node-v{version}-linux-arm64\.tar\.xz)"`,
			"mac-amd64":     `href="(node-v{version}-darwin-x64\.tar\.gz)"`,
			"mac-arm64":     `href="(node-v{version}-darwin-arm64\.tar\.gz)"`,
			"windows-amd64": `href="(node-v{version}-win-x64\.zip)"`,
			"windows-arm64": `href="(node-v{version}-win-arm64\.zip)"`,
		},
	},
	{
		Name:           "go",
		Type:           "scrape",
		Description:    "The Go toolchain from the download page.",
		IndexURL:       "https://go.dev/dl/",
		VersionPattern: `href="/dl/go(\d+\.\d+(?:\.\d+)?)\.src\.tar\.gz"`,
		Assets: map[string]string{
			"linux-amd64":   `href="(/dl/go{version}\.linux-amd64\.tar\.gz)"`,
			"linux-arm64":   `href="(/dl/go{version}\.linux-arm64\.tar\.gz)"`,
			"mac-amd64":     `href="(/dl/go{version}\.darwin-amd64\.tar\.gz)"`,
			"mac-arm64":     `href="(/dl/go{version}\.darwin-arm64\.tar\.gz)"`,
			"windows-amd64": `href="(/dl/go{version}\.windows-amd64\.zip)"`,
			"windows-arm64": `href="(/dl/go{version}\.windows-arm64\.zip)"`,
		},
	},
	{
		Name:           "gsutil",
		Type:           "bucket",
		Description:    "Cloud Storage command line tool, published to the public bucket.",
		Bucket:         "pub",
		Prefix:         "gsutil_",
		VersionPattern: `^gsutil_(\d+\.\d+(?:\.\d+)?)\.tar\.gz$`,
		Assets: map[string]string{
			"linux-amd64": `^gsutil_{version}\.tar\.gz$`,
		},
		// pure python, one archive serves every platform
		PlatformMap: map[string]string{
			"linux-arm64":   "linux-amd64",
			"mac-amd64":     "linux-amd64",
			"mac-arm64":     "linux-amd64",
			"windows-amd64": "linux-amd64",
		},
		DownloadURL: "https://storage.googleapis.com/pub",
	},
	{
		Name:        "dotnet-sdk",
		Type:        "pinned",
		Description: ".NET SDK, pinned to the version the toolchain is qualified against.",
		Version:     "8.0.100",
		Files: map[string][]*FileConfig{
			"windows-amd64": {
				{URL: "https://dotnetcli.azureedge.net/dotnet/Sdk/{version}/dotnet-sdk-{version}-win-x64.zip", Name: "dotnet-sdk.zip"},
			},
			"windows-arm64": {
				{URL: "https://dotnetcli.azureedge.net/dotnet/Sdk/{version}/dotnet-sdk-{version}-win-arm64.zip", Name: "dotnet-sdk.zip"},
			},
			"linux-amd64": {
				{URL: "https://dotnetcli.azureedge.net/dotnet/Sdk/{version}/dotnet-sdk-{version}-linux-x64.tar.gz", Name: "dotnet-sdk.tar.gz"},
			},
		},
	},
}
