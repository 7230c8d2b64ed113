package reader

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gocrud/ioc/artifact"
	"gopkg.in/yaml.v3"
)

// refPrefix 属性值的引用前缀，"ref:other" 解析为对另一个工件的引用
const refPrefix = "ref:"

// Reader 从 YAML 文档加载工件定义
//
// 文档格式：
//
//	artifacts:
//	  - name: userRepo
//	    type: Repo            # 逻辑类型名，经 TypeRegistry 解析
//	    scope: singleton
//	    parent: repoBase
//	    lazyInit: true
//	    primary: true
//	    qualifier: main
//	    order: 5
//	    dependsOn: [db]
//	    properties:
//	      dsn: "file:test.db"
//	      cache: "ref:redisCache"
//	    aliases: [users]
type Reader struct {
	registry *TypeRegistry
}

// New 创建定义读取器
func New(registry *TypeRegistry) *Reader {
	return &Reader{registry: registry}
}

type document struct {
	Artifacts []definitionSpec `yaml:"artifacts"`
}

type definitionSpec struct {
	Name              string         `yaml:"name"`
	Type              string         `yaml:"type"`
	Scope             string         `yaml:"scope"`
	Parent            string         `yaml:"parent"`
	Abstract          bool           `yaml:"abstract"`
	LazyInit          bool           `yaml:"lazyInit"`
	Primary           bool           `yaml:"primary"`
	Qualifier         string         `yaml:"qualifier"`
	Order             *int           `yaml:"order"`
	AutowireCandidate *bool          `yaml:"autowireCandidate"`
	DependsOn         []string       `yaml:"dependsOn"`
	Properties        map[string]any `yaml:"properties"`
	Aliases           []string       `yaml:"aliases"`
}

// Load 解析 YAML 文档并把其中的定义注册到容器
// 返回成功注册的定义数量。容器的类型解析钩子指向本读取器的注册表。
func (r *Reader) Load(c *artifact.Container, data []byte) (int, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("reader: failed to parse document: %w", err)
	}

	c.SetTypeResolver(r.registry.Resolve)

	count := 0
	for i, spec := range doc.Artifacts {
		if spec.Name == "" {
			return count, fmt.Errorf("reader: artifact #%d has no name", i)
		}

		if err := c.RegisterDefinition(spec.Name, spec.options()...); err != nil {
			return count, fmt.Errorf("reader: failed to register %q: %w", spec.Name, err)
		}

		for _, alias := range spec.Aliases {
			if err := c.RegisterAlias(spec.Name, alias); err != nil {
				return count, fmt.Errorf("reader: failed to alias %q as %q: %w", spec.Name, alias, err)
			}
		}
		count++
	}
	return count, nil
}

// LoadFile 读取 YAML 文件并注册其中的定义
func (r *Reader) LoadFile(c *artifact.Container, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reader: failed to read %s: %w", path, err)
	}
	return r.Load(c, data)
}

// options 把声明式字段翻译为定义选项
func (s *definitionSpec) options() []artifact.Option {
	opts := make([]artifact.Option, 0, 8)

	if s.Type != "" {
		opts = append(opts, artifact.WithTypeName(s.Type))
	}
	if s.Scope != "" {
		opts = append(opts, artifact.WithScope(s.Scope))
	}
	if s.Parent != "" {
		opts = append(opts, artifact.WithParent(s.Parent))
	}
	if s.Abstract {
		opts = append(opts, artifact.WithAbstract())
	}
	if s.LazyInit {
		opts = append(opts, artifact.WithLazyInit())
	}
	if s.Primary {
		opts = append(opts, artifact.WithPrimary())
	}
	if s.Qualifier != "" {
		opts = append(opts, artifact.WithQualifier(s.Qualifier))
	}
	if s.Order != nil {
		opts = append(opts, artifact.WithOrder(*s.Order))
	}
	if s.AutowireCandidate != nil {
		opts = append(opts, artifact.WithAutowireCandidate(*s.AutowireCandidate))
	}
	if len(s.DependsOn) > 0 {
		opts = append(opts, artifact.WithDependsOn(s.DependsOn...))
	}

	// map 遍历无序，按键排序保证注册顺序稳定
	keys := make([]string, 0, len(s.Properties))
	for key := range s.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := s.Properties[key]
		if str, ok := value.(string); ok && strings.HasPrefix(str, refPrefix) {
			opts = append(opts, artifact.WithPropertyRef(key, strings.TrimPrefix(str, refPrefix)))
			continue
		}
		opts = append(opts, artifact.WithProperty(key, value))
	}

	return opts
}
