package clazz

import (
	"fmt"
	"strings"

	"github.com/dhamidi/bundlegen/classfile"
)

// crawl scans method bodies for a string constant loaded right before a call
// to Class.forName or the compiler generated class$ helper, and treats the
// string as a class reference.
func (p *parser) crawl() error {
	forName := p.forNameRef()
	helper := p.cp.FindMethodRef(p.c.ClassName.Binary(), classDollar, classForNameDescriptor)
	p.c.Crawled = true
	if forName == 0 && helper == 0 {
		return nil
	}

	for i := range p.cf.Methods {
		code := p.cf.Methods[i].Code()
		if code == nil {
			continue
		}
		var last uint16
		err := classfile.WalkCode(code.Code, func(ins classfile.Instruction) error {
			switch ins.Opcode {
			case classfile.OpLdc, classfile.OpLdcW:
				last = ins.Index
				return nil
			case classfile.OpInvokeStatic:
				if last != 0 && (ins.Index == forName || ins.Index == helper) {
					if s, ok := p.cp.GetString(last); ok {
						p.forName(s)
					}
				}
			}
			last = 0
			return nil
		})
		if err != nil {
			return fmt.Errorf("method %s: %w", p.cf.Methods[i].Name(p.cp), err)
		}
	}
	return nil
}

func (p *parser) forName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	binary := strings.ReplaceAll(name, ".", "/")
	if strings.HasPrefix(binary, "[") || strings.HasSuffix(binary, ";") {
		desc, err := p.d.Descriptor(binary)
		if err != nil {
			log.Debugf("ignoring Class.forName(%q) in %s: %s", name, p.c.Path, err)
			return
		}
		binary = desc.Type().Element().Binary()
		if desc.Type().Element().IsPrimitive() {
			return
		}
	}
	t := p.d.TypeRef(binary)
	p.referTo(t)
	p.c.ForName = append(p.c.ForName, t)
	p.collector.ClassForName(t)
	log.Debugf("%s loads %s reflectively", p.c.ClassName, t)
}
