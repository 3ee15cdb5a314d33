package symbols

import "github.com/yousuf/hookbridge/internal/platform"

var fullFileSystem = newSymbol("g_pFullFileSystem", Universal, map[platform.Family][]Target{
	platform.Windows: {FromName("g_pFullFileSystem")},
	platform.Linux:   {FromName("g_pFullFileSystem")},
	platform.Apple:   {FromName("g_pFullFileSystem")},
})

var handleClientLuaError = newSymbol("HandleClientLuaError", Server, map[platform.Family][]Target{
	platform.Windows: {
		FromSignature("55 8B EC 83 EC 08 8B 0D ?? ?? ?? ?? 56 57"),
		FromSignature("48 89 5C 24 ?? 48 89 74 24 ?? 57 48 83 EC 40 48 8B F2"),
	},
	platform.Linux: {
		FromName("_Z20HandleClientLuaErrorP11CBasePlayerPKc"),
		FromSignature("55 89 E5 57 56 53 83 EC 4C 8B 75 08 8B 5D 0C"),
	},
	platform.Apple: {
		FromName("_Z20HandleClientLuaErrorP11CBasePlayerPKc"),
	},
})

var fileSystemFactory = newSymbol("FileSystemFactory", Server, map[platform.Family][]Target{
	platform.Windows: {
		FromSignature("55 8B EC 68 ?? ?? ?? ?? FF 75 08 E8"),
		FromSignature("48 89 5C 24 ?? 57 48 83 EC 20 48 8B FA 48 8B D9 48 8D 15"),
	},
	platform.Linux: {
		FromName("_Z17FileSystemFactoryPKcPi"),
		FromSignature("55 89 E5 56 53 83 EC 10 8B 5D 08 C7 44 24 04"),
	},
	platform.Apple: {
		FromName("_Z17FileSystemFactoryPKcPi"),
	},
})

var (
	universalSymbols = []Symbol{fullFileSystem}
	serverSymbols    = []Symbol{handleClientLuaError, fileSystemFactory}
)

// FullFileSystem is the engine's filesystem interface accessor.
func FullFileSystem() Symbol { return fullFileSystem }

// HandleClientLuaError is the server's entry point for Lua errors reported
// by clients.
func HandleClientLuaError() Symbol { return handleClientLuaError }

// FileSystemFactory creates the engine's filesystem interfaces.
func FileSystemFactory() Symbol { return fileSystemFactory }
