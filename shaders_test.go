package mapshine

import (
	"strings"
	"testing"
)

func TestBuiltinShaderSourcesDeclareKageUnit(t *testing.T) {
	for name, src := range builtinShaderSources {
		if !strings.HasPrefix(src, "//kage:unit pixels\n") {
			t.Errorf("shader %q missing //kage:unit pixels header", name)
		}
		if !strings.Contains(src, "func Fragment(") {
			t.Errorf("shader %q missing Fragment entry point", name)
		}
	}
}

func TestEnsureShaderUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ensureShader with unknown name should panic")
		}
	}()
	ensureShader("no-such-shader")
}

func TestOverrideShaderSourceInvalidatesCompiled(t *testing.T) {
	const name = ShaderChannelPack

	// Simulate a previously compiled entry without touching the GPU.
	compiledShaders[name] = nil
	delete(compiledShaders, name)

	OverrideShaderSource(name, "//kage:unit pixels\npackage main\n")
	if _, ok := shaderOverrides[name]; !ok {
		t.Fatal("override not recorded")
	}
	if _, ok := compiledShaders[name]; ok {
		t.Error("override should drop the compiled shader")
	}

	ClearShaderOverride(name)
	if _, ok := shaderOverrides[name]; ok {
		t.Error("ClearShaderOverride should remove the override")
	}
}

func TestShaderRegistryCoversAllNames(t *testing.T) {
	names := []string{
		ShaderColorMatrix, ShaderExplorationMax, ShaderFog,
		ShaderCloudDensity, ShaderCloudShadow, ShaderCloudTops,
		ShaderBuildingShadow, ShaderChannelPack, ShaderLighting,
		ShaderBush, ShaderPrism,
	}
	for _, name := range names {
		if _, ok := builtinShaderSources[name]; !ok {
			t.Errorf("shader %q has no built-in source", name)
		}
	}
	if len(builtinShaderSources) != len(names) {
		t.Errorf("registry has %d sources, want %d", len(builtinShaderSources), len(names))
	}
}
