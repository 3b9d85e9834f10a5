package service

import (
	"errors"
	"fmt"

	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/model"
)

var (
	ErrMissingDataset = errors.New("未绑定数据集，无法解析数据集参数")
)

// MissingParamError 必填参数既无表单值也无默认值
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("缺少必填参数: %s", e.Name)
}

// ParamBinder 把模块的参数定义、用户表单和数据集内容
// 绑定成提交给后端的参数列表，顺序与模块定义一致
type ParamBinder struct{}

func NewParamBinder() *ParamBinder {
	return &ParamBinder{}
}

// Bind 逐个解析模块参数：
//   - dataset 参数展开为数据集成员文件的路径列表；必填的 dataset 参数
//     缺少数据集或展开为空集都失败，可选的则跳过或绑定空集
//   - 其余类型取表单值，缺省时回退到参数默认值
//   - 必填参数最终没有值即失败，整个提交不会发出
func (b *ParamBinder) Bind(module *model.Module, dataset *model.Dataset, form map[string]string) ([]backend.Param, error) {
	params := make([]backend.Param, 0, len(module.Params))

	for _, def := range module.Params {
		if def.ParamType == model.ParamTypeDataset {
			if dataset == nil {
				if def.Required {
					return nil, ErrMissingDataset
				}
				continue
			}
			values := make([]string, 0, len(dataset.Files))
			for _, f := range dataset.Files {
				values = append(values, f.FilePath)
			}
			if len(values) == 0 && def.Required {
				return nil, ErrMissingDataset
			}
			params = append(params, backend.Param{Name: def.Name, Values: values})
			continue
		}

		value, ok := form[def.Name]
		if !ok || value == "" {
			value = def.DefaultValue
		}
		if value == "" {
			if def.Required {
				return nil, &MissingParamError{Name: def.Name}
			}
			continue
		}
		params = append(params, backend.Param{Name: def.Name, Values: []string{value}})
	}

	return params, nil
}
